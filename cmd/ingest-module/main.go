// Точка входа Ingest Module — модуля ингеста научных данных
// с сохранением происхождения.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
