package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// Database schema overview:
// 1. users - credentials, role, active flag, password-reset token hash + expiry
// 2. prompts - user-authored prompts with refinement configuration, a pointer
//    to the current version, and a soft-delete flag
// 3. prompt_versions - append-only, per-prompt numbered refinement snapshots;
//    (prompt_id, version_number) is unique
// 4. usage_analytics - one counter record per (user_id, prompt_id) pair with
//    derived success/failure rates
// 5. templates - reusable base prompts, optionally public
