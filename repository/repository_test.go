package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/prometrix/backend/apperr"
	"github.com/prometrix/backend/models"
	"github.com/prometrix/backend/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testRepo(t *testing.T) *repository.GORMRepository {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "Failed to create test database")

	repo := repository.NewGORMRepository(db)
	require.NoError(t, repo.AutoMigrate(), "Failed to migrate test database")
	return repo
}

func createTestUser(t *testing.T, repo *repository.GORMRepository, email string) *models.User {
	user := &models.User{
		Name:     "Test User",
		Email:    email,
		Password: "hashed",
		Role:     "user",
		IsActive: true,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func createTestPrompt(t *testing.T, repo *repository.GORMRepository, ownerID string) *models.Prompt {
	prompt := &models.Prompt{
		Title:     "Build a login form",
		RawPrompt: "make a login form",
		ToolMode:  models.ToolModeV0,
		Tone:      "technical",
		CreatedBy: ownerID,
	}
	require.NoError(t, repo.CreatePrompt(context.Background(), prompt))
	return prompt
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	createTestUser(t, repo, "dup@example.com")

	err := repo.CreateUser(ctx, &models.User{
		Name:     "Other",
		Email:    "dup@example.com",
		Password: "hashed",
		Role:     "user",
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestVersionLedger(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user := createTestUser(t, repo, "ledger@example.com")
	prompt := createTestPrompt(t, repo, user.ID)

	latest, err := repo.LatestVersionNumber(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, latest, "unrefined prompt has no versions")

	for i := 1; i <= 3; i++ {
		version := &models.PromptVersion{
			PromptID:      prompt.ID,
			VersionNumber: i,
			RawPrompt:     prompt.RawPrompt,
			RefinedPrompt: "refined",
			CreatedBy:     user.ID,
		}
		require.NoError(t, repo.CreatePromptVersion(ctx, version))
	}

	latest, err = repo.LatestVersionNumber(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)

	versions, err := repo.GetPromptVersions(ctx, prompt.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 3, versions[0].VersionNumber, "newest number first")
	assert.Equal(t, 1, versions[2].VersionNumber)
}

func TestVersionNumberConflict(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user := createTestUser(t, repo, "conflict@example.com")
	prompt := createTestPrompt(t, repo, user.ID)

	first := &models.PromptVersion{
		PromptID:      prompt.ID,
		VersionNumber: 1,
		RawPrompt:     prompt.RawPrompt,
		RefinedPrompt: "refined once",
		CreatedBy:     user.ID,
	}
	require.NoError(t, repo.CreatePromptVersion(ctx, first))

	// A second row claiming the same number loses to the unique index.
	duplicate := &models.PromptVersion{
		PromptID:      prompt.ID,
		VersionNumber: 1,
		RawPrompt:     prompt.RawPrompt,
		RefinedPrompt: "refined again",
		CreatedBy:     user.ID,
	}
	err := repo.CreatePromptVersion(ctx, duplicate)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	versions, err := repo.GetPromptVersions(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1, "the conflicting row was not written")
}

func TestGetVersionByNumber(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user := createTestUser(t, repo, "byversion@example.com")
	prompt := createTestPrompt(t, repo, user.ID)

	require.NoError(t, repo.CreatePromptVersion(ctx, &models.PromptVersion{
		PromptID:      prompt.ID,
		VersionNumber: 1,
		RawPrompt:     prompt.RawPrompt,
		RefinedPrompt: "refined",
		CreatedBy:     user.ID,
	}))

	version, err := repo.GetVersionByNumber(ctx, prompt.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, version)
	assert.Equal(t, "refined", version.RefinedPrompt)

	missing, err := repo.GetVersionByNumber(ctx, prompt.ID, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPromptOwnershipScoping(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	owner := createTestUser(t, repo, "owner@example.com")
	stranger := createTestUser(t, repo, "stranger@example.com")
	prompt := createTestPrompt(t, repo, owner.ID)

	found, err := repo.GetPromptByID(ctx, prompt.ID, owner.ID)
	require.NoError(t, err)
	assert.NotNil(t, found)

	// Another user's lookup behaves exactly like a missing prompt.
	hidden, err := repo.GetPromptByID(ctx, prompt.ID, stranger.ID)
	require.NoError(t, err)
	assert.Nil(t, hidden)

	// Admin paths skip the ownership check.
	admin, err := repo.GetPromptByID(ctx, prompt.ID, "")
	require.NoError(t, err)
	assert.NotNil(t, admin)
}

func TestSoftDeleteKeepsLedger(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user := createTestUser(t, repo, "softdelete@example.com")
	prompt := createTestPrompt(t, repo, user.ID)

	require.NoError(t, repo.CreatePromptVersion(ctx, &models.PromptVersion{
		PromptID:      prompt.ID,
		VersionNumber: 1,
		RawPrompt:     prompt.RawPrompt,
		RefinedPrompt: "refined",
		CreatedBy:     user.ID,
	}))

	deleted, err := repo.SoftDeletePrompt(ctx, prompt.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)

	// The prompt disappears from reads...
	gone, err := repo.GetPromptByID(ctx, prompt.ID, user.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// ...but its versions survive.
	versions, err := repo.GetPromptVersions(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	// Deleting again reads as not found.
	again, err := repo.SoftDeletePrompt(ctx, prompt.ID, user.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestListPromptHistory(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user := createTestUser(t, repo, "history@example.com")

	first := &models.Prompt{
		Title:     "API error handling",
		RawPrompt: "handle errors",
		ToolMode:  models.ToolModeCursor,
		Tone:      "technical",
		CreatedBy: user.ID,
	}
	require.NoError(t, repo.CreatePrompt(ctx, first))

	second := &models.Prompt{
		Title:     "Landing page copy",
		RawPrompt: "write copy",
		ToolMode:  models.ToolModeGeneric,
		Tone:      "casual",
		CreatedBy: user.ID,
	}
	require.NoError(t, repo.CreatePrompt(ctx, second))

	require.NoError(t, repo.CreatePromptVersion(ctx, &models.PromptVersion{
		PromptID:      first.ID,
		VersionNumber: 1,
		RawPrompt:     first.RawPrompt,
		RefinedPrompt: "refined",
		CreatedBy:     user.ID,
	}))

	prompts, counts, pagination, err := repo.ListPromptHistory(ctx, user.ID, repository.PromptFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, prompts, 2)
	assert.Equal(t, int64(1), counts[first.ID])
	assert.Equal(t, int64(0), counts[second.ID])
	assert.Equal(t, int64(2), pagination.Total)

	// Tone filter.
	prompts, _, _, err = repo.ListPromptHistory(ctx, user.ID, repository.PromptFilter{Tone: "casual", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, second.ID, prompts[0].ID)

	// Keyword search over title.
	prompts, _, _, err = repo.ListPromptHistory(ctx, user.ID, repository.PromptFilter{Search: "error", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, first.ID, prompts[0].ID)
}

func TestLatestVersionsByPrompts(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user := createTestUser(t, repo, "latest@example.com")
	refined := createTestPrompt(t, repo, user.ID)
	untouched := createTestPrompt(t, repo, user.ID)

	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.CreatePromptVersion(ctx, &models.PromptVersion{
			PromptID:      refined.ID,
			VersionNumber: i,
			RawPrompt:     refined.RawPrompt,
			RefinedPrompt: fmt.Sprintf("refined v%d", i),
			CreatedBy:     user.ID,
		}))
	}

	latest, err := repo.LatestVersionsByPrompts(ctx, []string{refined.ID, untouched.ID})
	require.NoError(t, err)
	require.Contains(t, latest, refined.ID)
	assert.Equal(t, 3, latest[refined.ID].VersionNumber)
	assert.Equal(t, "refined v3", latest[refined.ID].RefinedPrompt)

	// Prompts with no versions are simply absent.
	assert.NotContains(t, latest, untouched.ID)

	empty, err := repo.LatestVersionsByPrompts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTemplates(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	owner := createTestUser(t, repo, "templates@example.com")
	stranger := createTestUser(t, repo, "templates2@example.com")

	public := &models.Template{
		Name:       "REST API Endpoint",
		Category:   "backend",
		BasePrompt: "Create an endpoint",
		ToolMode:   models.ToolModeCursor,
		CreatedBy:  owner.ID,
		IsPublic:   true,
	}
	require.NoError(t, repo.CreateTemplate(ctx, public))

	private := &models.Template{
		Name:       "My Snippet",
		Category:   "frontend",
		BasePrompt: "Private base",
		ToolMode:   models.ToolModeGeneric,
		CreatedBy:  owner.ID,
		IsPublic:   false,
	}
	require.NoError(t, repo.CreateTemplate(ctx, private))

	// The gallery shows only public templates.
	gallery, err := repo.ListPublicTemplates(ctx, "")
	require.NoError(t, err)
	require.Len(t, gallery, 1)
	assert.Equal(t, public.ID, gallery[0].ID)

	// Category filter.
	none, err := repo.ListPublicTemplates(ctx, "frontend")
	require.NoError(t, err)
	assert.Empty(t, none)

	// Owner listing includes both.
	mine, err := repo.ListUserTemplates(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	// A stranger cannot load or delete someone else's template.
	hidden, err := repo.GetTemplateByID(ctx, private.ID, stranger.ID)
	require.NoError(t, err)
	assert.Nil(t, hidden)

	found, err := repo.DeleteTemplate(ctx, private.ID, stranger.ID)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.DeleteTemplate(ctx, private.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, found)

	// The delete is hard: no row survives in the table.
	var remaining int64
	require.NoError(t, repo.DB().Model(&models.Template{}).
		Where("id = ?", private.ID).
		Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestListUsers(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	alice := createTestUser(t, repo, "alice@example.com")
	createTestUser(t, repo, "bob@example.com")
	createTestPrompt(t, repo, alice.ID)
	createTestPrompt(t, repo, alice.ID)

	users, counts, pagination, err := repo.ListUsers(ctx, repository.UserFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, int64(2), pagination.Total)
	assert.Equal(t, int64(2), counts[alice.ID])

	// Search narrows by name or email.
	users, _, _, err = repo.ListUsers(ctx, repository.UserFilter{Search: "alice", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, alice.ID, users[0].ID)
}
