// manager_test.go - Tests for storage layer
package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shipment-insights/backend/internal/models"
)

func createTestStore(t *testing.T) *LocalStore {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates store successfully", func(t *testing.T) {
		store := createTestStore(t)

		if store == nil {
			t.Fatal("Expected store to be created")
		}
		if store.uploadDir == "" {
			t.Error("Expected uploadDir to be set")
		}
	})

	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		_, err := NewLocalStore(uploadDir)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			t.Error("Expected upload directory to be created")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createTestStore(t)

		content := "bol,carrier,origin,destination\n"
		info, err := store.Save("shipments.csv", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if info.ID == "" {
			t.Error("Expected ID to be set")
		}
		if info.Name != "shipments.csv" {
			t.Errorf("Expected name 'shipments.csv', got %v", info.Name)
		}
		if info.Size != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), info.Size)
		}
		if info.Status != "uploaded" {
			t.Errorf("Expected status 'uploaded', got %v", info.Status)
		}
	})

	t.Run("creates physical file", func(t *testing.T) {
		store := createTestStore(t)

		content := "Test content"
		info, err := store.Save("test.csv", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
		if err != nil {
			t.Fatalf("Failed to read saved file: %v", err)
		}
		if string(data) != content {
			t.Errorf("Expected content '%s', got '%s'", content, string(data))
		}
	})
}

func TestLocalStore_Get(t *testing.T) {
	t.Run("gets existing file", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("test.csv", strings.NewReader("content"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		retrieved, err := store.Get(info.ID)
		if err != nil {
			t.Fatalf("Failed to get file: %v", err)
		}
		if retrieved.ID != info.ID || retrieved.Name != info.Name {
			t.Errorf("Expected %v, got %v", info, retrieved)
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		store := createTestStore(t)

		if _, err := store.Get("non-existent-id"); err == nil {
			t.Error("Expected error for non-existent file")
		}
	})
}

func TestLocalStore_List(t *testing.T) {
	t.Run("limits and sorts by upload time descending", func(t *testing.T) {
		store := createTestStore(t)

		ids := make([]string, 5)
		for i := 0; i < 5; i++ {
			info, err := store.Save("file.csv", strings.NewReader("content"))
			if err != nil {
				t.Fatalf("Failed to save file: %v", err)
			}
			ids[i] = info.ID
			time.Sleep(10 * time.Millisecond) // Ensure different timestamps
		}

		files, err := store.List(3)
		if err != nil {
			t.Fatalf("Failed to list files: %v", err)
		}
		if len(files) != 3 {
			t.Fatalf("Expected 3 files, got %d", len(files))
		}
		if files[0].ID != ids[4] {
			t.Error("Expected most recent file first")
		}
	})
}

func TestLocalStore_Delete(t *testing.T) {
	t.Run("deletes existing file", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("test.csv", strings.NewReader("content"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if err := store.Delete(info.ID); err != nil {
			t.Fatalf("Failed to delete file: %v", err)
		}

		if _, err := store.Get(info.ID); err == nil {
			t.Error("Expected error when getting deleted file")
		}
		if _, err := os.Stat(filepath.Join(store.uploadDir, info.ID)); !os.IsNotExist(err) {
			t.Error("Physical file should be deleted")
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		store := createTestStore(t)

		if err := store.Delete("non-existent-id"); err == nil {
			t.Error("Expected error when deleting non-existent file")
		}
	})
}

func TestLocalStore_Rename(t *testing.T) {
	store := createTestStore(t)

	info, err := store.Save("oldname.csv", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	updated, err := store.Rename(info.ID, "newname.csv")
	if err != nil {
		t.Fatalf("Failed to rename file: %v", err)
	}
	if updated.Name != "newname.csv" {
		t.Errorf("Expected name 'newname.csv', got %v", updated.Name)
	}

	if _, err := store.Rename("non-existent-id", "x.csv"); err == nil {
		t.Error("Expected error when renaming non-existent file")
	}
}

func TestLocalStore_GetFilePath(t *testing.T) {
	store := createTestStore(t)

	info, err := store.Save("test.csv", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	path, err := store.GetFilePath(info.ID)
	if err != nil {
		t.Fatalf("Failed to get file path: %v", err)
	}
	if path != filepath.Join(store.uploadDir, info.ID) {
		t.Errorf("Unexpected path %s", path)
	}

	if _, err := store.GetFilePath("non-existent-id"); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestLocalStore_SetValidation(t *testing.T) {
	store := createTestStore(t)

	info, err := store.Save("test.csv", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	if err := store.SetValidation(info.ID, "ready", 1234); err != nil {
		t.Fatalf("Failed to set validation: %v", err)
	}

	retrieved, _ := store.Get(info.ID)
	if retrieved.Status != "ready" {
		t.Errorf("Expected status 'ready', got %v", retrieved.Status)
	}
	if retrieved.RowCount != 1234 {
		t.Errorf("Expected row count 1234, got %d", retrieved.RowCount)
	}

	if err := store.SetValidation("non-existent-id", "ready", 1); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestLocalStore_RegisterFile(t *testing.T) {
	store := createTestStore(t)

	info := &models.FileInfo{
		ID:         "existing-file",
		Name:       "registered.csv",
		Size:       16,
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}
	store.RegisterFile(info)

	retrieved, err := store.Get("existing-file")
	if err != nil {
		t.Fatalf("Failed to get registered file: %v", err)
	}
	if retrieved.Name != "registered.csv" {
		t.Errorf("Expected name 'registered.csv', got %v", retrieved.Name)
	}
}

func TestLocalStore_ChunkedUpload(t *testing.T) {
	t.Run("assembles chunks into final file", func(t *testing.T) {
		store := createTestStore(t)

		uploadID := "upload-complete"
		chunks := []string{"Hello ", "World", "!"}

		for i, content := range chunks {
			if err := store.SaveChunk(uploadID, i, strings.NewReader(content)); err != nil {
				t.Fatalf("Failed to save chunk %d: %v", i, err)
			}
		}

		info, err := store.CompleteChunkedUpload(uploadID, "assembled.csv", len(chunks))
		if err != nil {
			t.Fatalf("Failed to complete upload: %v", err)
		}

		if info.Name != "assembled.csv" {
			t.Errorf("Expected name 'assembled.csv', got %v", info.Name)
		}
		if info.Size != int64(len("Hello World!")) {
			t.Errorf("Expected size %d, got %d", len("Hello World!"), info.Size)
		}

		data, err := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
		if err != nil {
			t.Fatalf("Failed to read assembled file: %v", err)
		}
		if string(data) != "Hello World!" {
			t.Errorf("Expected 'Hello World!', got '%s'", string(data))
		}

		// Chunks are cleaned up
		chunkDir := filepath.Join(store.uploadDir, "chunks", uploadID)
		if _, err := os.Stat(chunkDir); !os.IsNotExist(err) {
			t.Error("Chunk directory should be cleaned up")
		}
	})

	t.Run("returns error for missing chunks", func(t *testing.T) {
		store := createTestStore(t)

		uploadID := "upload-incomplete"
		if err := store.SaveChunk(uploadID, 0, strings.NewReader("chunk0")); err != nil {
			t.Fatalf("Failed to save chunk: %v", err)
		}

		if _, err := store.CompleteChunkedUpload(uploadID, "incomplete.csv", 3); err == nil {
			t.Error("Expected error when chunks are missing")
		}
	})
}

func TestLocalStore_ConcurrentAccess(t *testing.T) {
	store := createTestStore(t)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			content := "Content " + string(rune('0'+n))
			_, err := store.Save("file.csv", strings.NewReader(content))
			if err != nil {
				t.Errorf("Failed to save file: %v", err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	files, err := store.List(20)
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if len(files) != 10 {
		t.Errorf("Expected 10 files, got %d", len(files))
	}
}

// failingReader always errors to exercise the save error path
type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func TestLocalStore_ErrorHandling(t *testing.T) {
	store := createTestStore(t)

	if _, err := store.Save("test.csv", failingReader{}); err == nil {
		t.Error("Expected error when reader fails")
	}
}
