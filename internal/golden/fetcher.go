package golden

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/MrMartyK/source1.5/internal/fsutil"
)

// GameContent describes where one supported game keeps its reference maps.
type GameContent struct {
	Name       string
	AppID      string
	MapsDir    string
	GoldenMaps []string
	searchDirs []string
}

// Games lists the supported reference-content sources. Maps are not
// tracked in git; they are synced locally for regression testing only.
var Games = map[string]GameContent{
	"tf": {
		Name:    "Team Fortress 2",
		AppID:   "440",
		MapsDir: "tf/maps",
		GoldenMaps: []string{
			"ctf_2fort.bsp",
			"pl_badwater.bsp",
			"cp_dustbowl.bsp",
			"koth_harvest_final.bsp",
			"pl_upward.bsp",
		},
		searchDirs: []string{"Team Fortress 2", "TeamFortress2", "tf2"},
	},
	"hl2mp": {
		Name:    "Half-Life 2: Deathmatch",
		AppID:   "320",
		MapsDir: "hl2mp/maps",
		GoldenMaps: []string{
			"dm_lockdown.bsp",
			"dm_overwatch.bsp",
			"dm_resistance.bsp",
			"dm_runoff.bsp",
		},
		searchDirs: []string{"Half-Life 2 Deathmatch", "hl2mp"},
	},
}

// Stats counts the results of one fetch operation.
type Stats struct {
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Fetcher copies reference maps from a local Steam installation into the
// golden content directory.
type Fetcher struct {
	game      string
	content   GameContent
	outputDir string
	steamPath string
	log       *slog.Logger

	Stats Stats
}

// NewFetcher creates a fetcher for the named game ("tf" or "hl2mp").
func NewFetcher(game, outputDir string, logger *slog.Logger) (*Fetcher, error) {
	content, ok := Games[game]
	if !ok {
		return nil, fmt.Errorf("unknown game %q (supported: tf, hl2mp)", game)
	}
	return &Fetcher{
		game:      game,
		content:   content,
		outputDir: outputDir,
		log:       logger,
	}, nil
}

// Fetch locates Steam and the game, copies the golden maps, and writes a
// manifest. Returns an error when Steam or the game cannot be found; copy
// failures of individual maps are counted in Stats instead.
func (f *Fetcher) Fetch() error {
	steam, err := f.findSteam()
	if err != nil {
		return err
	}
	f.steamPath = steam

	gameDir, err := f.findGameDir(steam)
	if err != nil {
		return err
	}

	f.copyGoldenMaps(gameDir)

	if err := f.writeManifest(); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if f.Stats.Failed > 0 {
		return fmt.Errorf("%d of %d maps failed to copy", f.Stats.Failed, len(f.content.GoldenMaps))
	}
	return nil
}

func (f *Fetcher) findSteam() (string, error) {
	var candidates []string
	if runtime.GOOS == "windows" {
		candidates = []string{
			`C:\Program Files (x86)\Steam`,
			`C:\Program Files\Steam`,
		}
		if pf := os.Getenv("ProgramFiles(x86)"); pf != "" {
			candidates = append(candidates, filepath.Join(pf, "Steam"))
		}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		candidates = []string{
			filepath.Join(home, ".steam/steam"),
			filepath.Join(home, ".local/share/Steam"),
		}
	}

	for _, c := range candidates {
		// A steamapps subdirectory confirms it is really Steam.
		if fsutil.Exists(filepath.Join(c, "steamapps")) {
			f.log.Info("found Steam installation", "path", c)
			return c, nil
		}
	}
	return "", fmt.Errorf("steam installation not found (searched %v)", candidates)
}

func (f *Fetcher) findGameDir(steam string) (string, error) {
	common := filepath.Join(steam, "steamapps", "common")
	for _, dir := range f.content.searchDirs {
		gamePath := filepath.Join(common, dir)
		if fsutil.Exists(filepath.Join(gamePath, f.content.MapsDir)) {
			f.log.Info("found game installation", "game", f.content.Name, "path", gamePath)
			return gamePath, nil
		}
	}
	return "", fmt.Errorf("%s not found under %s", f.content.Name, common)
}

func (f *Fetcher) copyGoldenMaps(gameDir string) {
	src := filepath.Join(gameDir, f.content.MapsDir)
	dst := filepath.Join(f.outputDir, "maps")

	f.log.Info("copying golden maps", "source", src, "dest", dst)

	for _, mapName := range f.content.GoldenMaps {
		srcFile := filepath.Join(src, mapName)
		dstFile := filepath.Join(dst, mapName)

		srcInfo, err := os.Stat(srcFile)
		if err != nil {
			f.log.Warn("map not found in game directory", "map", mapName)
			f.Stats.Failed++
			continue
		}

		// Same size counts as already synced; bsp content for a given
		// build never changes in place.
		if dstInfo, err := os.Stat(dstFile); err == nil && dstInfo.Size() == srcInfo.Size() {
			f.log.Debug("map already exists", "map", mapName, "size", dstInfo.Size())
			f.Stats.Skipped++
			continue
		}

		if err := fsutil.CopyFile(srcFile, dstFile); err != nil {
			f.log.Error("map copy failed", "map", mapName, "error", err)
			f.Stats.Failed++
			continue
		}
		f.log.Info("map copied", "map", mapName, "size_mb", float64(srcInfo.Size())/(1024*1024))
		f.Stats.Copied++
	}
}

func (f *Fetcher) writeManifest() error {
	manifest := struct {
		Game     string   `json:"game"`
		GameName string   `json:"game_name"`
		Maps     []string `json:"maps"`
		Source   string   `json:"source"`
		Stats    Stats    `json:"stats"`
	}{
		Game:     f.game,
		GameName: f.content.Name,
		Maps:     f.content.GoldenMaps,
		Source:   f.steamPath,
		Stats:    f.Stats,
	}

	if err := os.MkdirAll(f.outputDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.outputDir, "manifest.json"), data, 0o644)
}
