// offline.go — загрузка локальных входных файлов без обращения к сети.
package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadOffline читает локальный входной файл.
// Файл обязан существовать и содержать синтаксически корректный JSON;
// отсутствующий файл — ErrUnavailable. Возвращает содержимое побайтово
// и абсолютный путь файла для provenance.
func LoadOffline(inputPath string) ([]byte, string, error) {
	absPath, err := filepath.Abs(inputPath)
	if err != nil {
		return nil, "", fmt.Errorf("разрешение пути %s: %w", inputPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: входной файл не найден: %s", ErrUnavailable, absPath)
		}
		return nil, "", fmt.Errorf("чтение входного файла %s: %w", absPath, err)
	}

	if !json.Valid(data) {
		return nil, "", fmt.Errorf("входной файл %s не является корректным JSON", absPath)
	}

	return data, absPath, nil
}
