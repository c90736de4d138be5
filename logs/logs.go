package logs

import (
	"log"
	"os"
	"path/filepath"

	"github.com/vecql/engine/config"
)

var Output *os.File

// InitializeFileLogger redirects the standard logger to a file under
// config.CacheDir, the way cmd/octosql/main.go's badger_logger.go
// wires logging for the original CLI — cmd/execrun uses it the same
// way. The library packages, the scheduler included, never log.
func InitializeFileLogger() {
	path := filepath.Join(config.CacheDir, "logs.txt")
	if err := os.MkdirAll(config.CacheDir, 0755); err != nil {
		log.Fatalf("couldn't create cache directory: %s", err)
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("couldn't create logs file: %s", err)
	}
	Output = f
	log.SetOutput(Output)
}

func CloseLogger() {
	Output.Close()
}
