// Package services implements the orchestration core: ingestion,
// retrieval, model registry, prompt composition and session management.
// Services depend only on domain types and driven ports.
package services
