package integrity

import (
	"os"
	"path/filepath"
	"testing"
)

// Известный дайджест: sha256("{}").
const emptyObjectSHA256 = "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a"

// TestSumBytes_KnownVector проверяет дайджест по известному вектору.
func TestSumBytes_KnownVector(t *testing.T) {
	got := SumBytes([]byte("{}"))
	if got != emptyObjectSHA256 {
		t.Errorf("SumBytes: ожидалось %q, получено %q", emptyObjectSHA256, got)
	}
	if len(got) != 64 {
		t.Errorf("длина дайджеста: ожидалось 64 hex-символа, получено %d", len(got))
	}
}

// TestSumBytes_Deterministic проверяет стабильность дайджеста
// между повторными вызовами.
func TestSumBytes_Deterministic(t *testing.T) {
	data := []byte(`{"target":"3I/ATLAS","epoch":"2026-08-29"}`)
	first := SumBytes(data)
	for i := 0; i < 10; i++ {
		if got := SumBytes(data); got != first {
			t.Fatalf("дайджест нестабилен: %q != %q", got, first)
		}
	}
}

// TestSumFile_MatchesSumBytes проверяет, что дайджест файла
// совпадает с дайджестом его содержимого.
func TestSumFile_MatchesSumBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.json")
	data := []byte("{}")

	if err := os.WriteFile(path, data, 0o640); err != nil {
		t.Fatalf("ошибка записи тестового файла: %v", err)
	}

	got, err := SumFile(path)
	if err != nil {
		t.Fatalf("ошибка SumFile: %v", err)
	}
	if got != emptyObjectSHA256 {
		t.Errorf("SumFile: ожидалось %q, получено %q", emptyObjectSHA256, got)
	}

	size, err := SizeFile(path)
	if err != nil {
		t.Fatalf("ошибка SizeFile: %v", err)
	}
	if size != 2 {
		t.Errorf("SizeFile: ожидалось 2, получено %d", size)
	}
	if Size(data) != 2 {
		t.Errorf("Size: ожидалось 2, получено %d", Size(data))
	}
}

// TestSumFile_NotFound проверяет ошибку для несуществующего файла.
func TestSumFile_NotFound(t *testing.T) {
	if _, err := SumFile(filepath.Join(t.TempDir(), "нет-такого.json")); err == nil {
		t.Fatal("ожидалась ошибка для несуществующего файла")
	}
	if _, err := SizeFile(filepath.Join(t.TempDir(), "нет-такого.json")); err == nil {
		t.Fatal("ожидалась ошибка для несуществующего файла")
	}
}
