// Package utilities: unit tests for VersioningUtility
package utilities

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Helper function to create test AuthorConfiguration
func testAuthorConfig() *AuthorConfiguration {
	return &AuthorConfiguration{
		User:  "Test Author",
		Email: "test@example.com",
	}
}

// TestVersioningUtility_InitializeRepository_FactoryFunction tests factory function availability
func TestVersioningUtility_InitializeRepository_FactoryFunction(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "factory_test")

	repo, err := InitializeRepositoryWithConfig(repoPath, testAuthorConfig())
	if err != nil {
		t.Fatalf("Factory function failed: %v", err)
	}
	defer repo.Close()

	if repo == nil {
		t.Fatal("Factory function returned nil repository")
	}
}

// TestVersioningUtility_InitializeRepository_NewRepository tests creating new repository
func TestVersioningUtility_InitializeRepository_NewRepository(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "test_repo")

	repo, err := InitializeRepositoryWithConfig(repoPath, testAuthorConfig())
	if err != nil {
		t.Fatalf("Expected successful initialization, got error: %v", err)
	}
	defer repo.Close()

	if repo.Path() != repoPath {
		t.Errorf("Expected path %s, got %s", repoPath, repo.Path())
	}

	// Verify .git directory was created
	gitDir := filepath.Join(repoPath, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		t.Error("Expected .git directory to be created")
	}
}

// TestVersioningUtility_InitializeRepository_ExistingRepository tests opening existing repository
func TestVersioningUtility_InitializeRepository_ExistingRepository(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "existing_repo")

	repo1, err := InitializeRepositoryWithConfig(repoPath, testAuthorConfig())
	if err != nil {
		t.Fatalf("Failed to create initial repository: %v", err)
	}
	repo1.Close()

	repo2, err := InitializeRepositoryWithConfig(repoPath, testAuthorConfig())
	if err != nil {
		t.Fatalf("Expected successful opening of existing repository, got error: %v", err)
	}
	defer repo2.Close()

	if repo2.Path() != repoPath {
		t.Errorf("Expected path %s, got %s", repoPath, repo2.Path())
	}
}

// TestVersioningUtility_InitializeRepository_InvalidPath tests invalid path handling
func TestVersioningUtility_InitializeRepository_InvalidPath(t *testing.T) {
	invalidPath := "/dev/null/invalid_repo"
	_, err := InitializeRepositoryWithConfig(invalidPath, testAuthorConfig())
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

// TestVersioningUtility_GetRepositoryStatus tests repository status retrieval
func TestVersioningUtility_GetRepositoryStatus(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "status_test")

	repo, err := InitializeRepositoryWithConfig(repoPath, testAuthorConfig())
	if err != nil {
		t.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	status, err := repo.Status()
	if err != nil {
		t.Fatalf("Failed to get repository status: %v", err)
	}
	if status == nil {
		t.Fatal("Expected status object, got nil")
	}

	testFile := filepath.Join(repoPath, "test.txt")
	if err := os.WriteFile(testFile, []byte("test content"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	status, err = repo.Status()
	if err != nil {
		t.Fatalf("Failed to get repository status: %v", err)
	}
	if len(status.UntrackedFiles) == 0 {
		t.Error("Expected untracked files, got none")
	}
	if !containsString(status.UntrackedFiles, "test.txt") {
		t.Error("Expected test.txt to be in untracked files")
	}
}

// TestVersioningUtility_StageChanges tests file staging
func TestVersioningUtility_StageChanges(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "stage_test")

	repo, err := InitializeRepositoryWithConfig(repoPath, testAuthorConfig())
	if err != nil {
		t.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	testFile1 := filepath.Join(repoPath, "file1.txt")
	testFile2 := filepath.Join(repoPath, "file2.txt")

	if err := os.WriteFile(testFile1, []byte("content1"), 0644); err != nil {
		t.Fatalf("Failed to create test file 1: %v", err)
	}
	if err := os.WriteFile(testFile2, []byte("content2"), 0644); err != nil {
		t.Fatalf("Failed to create test file 2: %v", err)
	}

	err = repo.Stage([]string{"."})
	if err != nil {
		t.Fatalf("Failed to stage changes: %v", err)
	}

	status, err := repo.Status()
	if err != nil {
		t.Fatalf("Failed to get status: %v", err)
	}
	if len(status.StagedFiles) == 0 {
		t.Error("Expected staged files, got none")
	}
}

// TestVersioningUtility_StageChanges_SelectiveStaging tests pattern-based staging
func TestVersioningUtility_StageChanges_SelectiveStaging(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "selective_stage_test")

	repo, err := InitializeRepositoryWithConfig(repoPath, testAuthorConfig())
	if err != nil {
		t.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	txtFile := filepath.Join(repoPath, "test.txt")
	mdFile := filepath.Join(repoPath, "readme.md")

	if err := os.WriteFile(txtFile, []byte("text content"), 0644); err != nil {
		t.Fatalf("Failed to create txt file: %v", err)
	}
	if err := os.WriteFile(mdFile, []byte("# Readme"), 0644); err != nil {
		t.Fatalf("Failed to create md file: %v", err)
	}

	err = repo.Stage([]string{"*.txt"})
	if err != nil {
		t.Fatalf("Failed to stage txt files: %v", err)
	}

	status, err := repo.Status()
	if err != nil {
		t.Fatalf("Failed to get status: %v", err)
	}

	if !containsString(status.StagedFiles, "test.txt") {
		t.Error("Expected test.txt to be staged")
	}
	if containsString(status.StagedFiles, "readme.md") {
		t.Error("Expected readme.md to NOT be staged")
	}
}

// TestVersioningUtility_CommitChanges tests commit creation
func TestVersioningUtility_CommitChanges(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "commit_test")

	repo, err := InitializeRepositoryWithConfig(repoPath, testAuthorConfig())
	if err != nil {
		t.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	testFile := filepath.Join(repoPath, "test.txt")
	if err := os.WriteFile(testFile, []byte("test content"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	err = repo.Stage([]string{"."})
	if err != nil {
		t.Fatalf("Failed to stage changes: %v", err)
	}

	commitHash, err := repo.Commit("Initial commit")
	if err != nil {
		t.Fatalf("Failed to commit changes: %v", err)
	}
	if commitHash == "" {
		t.Error("Expected commit hash, got empty string")
	}
	if len(commitHash) != 40 { // SHA-1 hash length
		t.Errorf("Expected 40 character hash, got %d characters", len(commitHash))
	}
}

// TestVersioningUtility_GetRepositoryHistory tests commit history retrieval
func TestVersioningUtility_GetRepositoryHistory(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "history_test")

	repo, err := InitializeRepositoryWithConfig(repoPath, testAuthorConfig())
	if err != nil {
		t.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	// Test empty repository
	history, err := repo.GetHistory(10)
	if err != nil {
		t.Fatalf("Failed to get history from empty repo: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %d commits", len(history))
	}

	for i := 1; i <= 3; i++ {
		testFile := filepath.Join(repoPath, "file"+string(rune('0'+i))+".txt")
		content := []byte("content " + string(rune('0'+i)))

		if err := os.WriteFile(testFile, content, 0644); err != nil {
			t.Fatalf("Failed to create test file %d: %v", i, err)
		}

		err = repo.Stage([]string{"."})
		if err != nil {
			t.Fatalf("Failed to stage changes %d: %v", i, err)
		}

		_, err = repo.Commit("Commit " + string(rune('0'+i)))
		if err != nil {
			t.Fatalf("Failed to commit %d: %v", i, err)
		}

		time.Sleep(10 * time.Millisecond)
	}

	history, err = repo.GetHistory(0)
	if err != nil {
		t.Fatalf("Failed to get repository history: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("Expected 3 commits, got %d", len(history))
	}

	for _, commit := range history {
		if commit.ID == "" {
			t.Error("Expected commit ID, got empty")
		}
		if commit.Author != "Test Author" {
			t.Errorf("Expected author 'Test Author', got '%s'", commit.Author)
		}
		if commit.Email != "test@example.com" {
			t.Errorf("Expected email 'test@example.com', got '%s'", commit.Email)
		}
		if commit.Timestamp.IsZero() {
			t.Error("Expected timestamp, got zero time")
		}
		if commit.Message == "" {
			t.Error("Expected commit message, got empty")
		}
	}

	limitedHistory, err := repo.GetHistory(2)
	if err != nil {
		t.Fatalf("Failed to get limited history: %v", err)
	}
	if len(limitedHistory) != 2 {
		t.Errorf("Expected 2 commits with limit, got %d", len(limitedHistory))
	}
}

// TestRepositoryHandle_ConflictDetection tests conflict detection
func TestRepositoryHandle_ConflictDetection(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "conflict_test")

	repo, err := InitializeRepositoryWithConfig(repoPath, testAuthorConfig())
	if err != nil {
		t.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	status, err := repo.Status()
	if err != nil {
		t.Fatalf("Failed to get status for conflict test: %v", err)
	}
	if status.HasConflicts {
		t.Error("Expected no conflicts in clean repository")
	}
}

// Helper function to check if slice contains string
func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
