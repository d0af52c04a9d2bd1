package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"

	"promai/internal/registry"
)

var errNoModels = errors.New("no models found")

// modelChoices lists recent models first, then the models directory,
// without duplicates.
func modelChoices(a *app) []huh.Option[string] {
	seen := map[string]bool{}
	var opts []huh.Option[string]
	for _, r := range a.mgr.RecentModels() {
		if seen[r.Path] {
			continue
		}
		seen[r.Path] = true
		opts = append(opts, huh.NewOption(filepath.Base(r.Path)+" (recent)", r.Path))
	}
	models, err := registry.LoadDir(a.cfg.ModelsDir)
	if err != nil {
		a.log.Debug().Err(err).Str("dir", a.cfg.ModelsDir).Msg("scan models dir")
	}
	for _, m := range models {
		if seen[m.Path] {
			continue
		}
		seen[m.Path] = true
		opts = append(opts, huh.NewOption(fmt.Sprintf("%s (%s)", m.ID, humanize.IBytes(uint64(m.SizeBytes))), m.Path))
	}
	return opts
}

// pickModel asks which model to load. It returns errNoModels when there is
// nothing to choose from; the window then opens without a model.
func pickModel(a *app) (string, error) {
	opts := modelChoices(a)
	if len(opts) == 0 {
		return "", errNoModels
	}
	var path string
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Model to load").
			Options(opts...).
			Value(&path),
	)).Run()
	return path, err
}

// confirm asks a yes/no question.
func confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	)).Run()
	return ok, err
}
