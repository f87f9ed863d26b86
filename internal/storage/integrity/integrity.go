// Пакет integrity — контрольные суммы и размеры payload-артефактов.
//
// Дайджест и размер сохранённого payload всегда вычисляются по файлу,
// перечитанному с диска (SumFile/SizeFile), а не по буферу в памяти:
// так повреждение при записи обнаруживается как расхождение дайджеста
// при последующей независимой проверке.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// SumBytes возвращает hex-представление SHA-256 дайджеста буфера.
// Детерминирована: никаких нормализаций и перекодировок.
func SumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Size возвращает точную длину буфера в байтах.
func Size(data []byte) int64 {
	return int64(len(data))
}

// SumFile возвращает hex-представление SHA-256 дайджеста файла.
// Файл читается потоково, большие payload не загружаются в память целиком.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// SizeFile возвращает размер файла на диске в байтах.
func SizeFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("ошибка stat файла %s: %w", path, err)
	}
	return info.Size(), nil
}
