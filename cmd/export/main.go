// Command export writes a structure file for a saved build without running
// the server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"voxelstudio.ai/internal/catalog"
	"voxelstudio.ai/internal/config"
	"voxelstudio.ai/internal/export"
	"voxelstudio.ai/internal/persistence/buildsdb"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/config.yaml", "config file path")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		buildID    = flag.String("build", "", "build id to export (empty: list builds)")
		outPath    = flag.String("out", "", "output path (default: <build name>.structure.json; .zst compresses)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[export] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	store, err := buildsdb.Open(filepath.Join(cfg.DataDir, "builds.db"))
	if err != nil {
		logger.Fatalf("open builds db: %v", err)
	}
	defer store.Close()

	if *buildID == "" {
		builds, err := store.List()
		if err != nil {
			logger.Fatalf("list builds: %v", err)
		}
		if len(builds) == 0 {
			fmt.Println("no builds stored")
			return
		}
		for _, b := range builds {
			fmt.Printf("%s  %q  updated %s\n", b.ID, b.Name, b.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return
	}

	b, err := store.Get(*buildID)
	if err != nil {
		logger.Fatalf("load build %s: %v", *buildID, err)
	}

	cat, err := catalog.Load(cfg.CatalogPath, cfg.TextureBase)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}

	s := export.FromBuild(b, cat)
	path := *outPath
	if path == "" {
		path = export.Filename(b.Name)
	}
	if err := export.WriteFile(path, s); err != nil {
		logger.Fatalf("write %s: %v", path, err)
	}
	fmt.Printf("wrote %s (%d cells, %d palette entries)\n", path, len(s.Blocks), len(s.Palette))
}
