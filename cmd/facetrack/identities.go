package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/schollz/progressbar/v3"

	"github.com/MrCodeEU/facetrack/pkg/identify"
	"github.com/MrCodeEU/facetrack/pkg/logging"
	"github.com/MrCodeEU/facetrack/pkg/recognition"
	"github.com/MrCodeEU/facetrack/pkg/storage"
)

func cmdIdentify(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("image required\nUsage: facetrack identify <image>")
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	store, err := openStore(engine)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	id := identify.New(engine, store.Tracker(), store)
	id.Threshold = float32(cfg.Engine.MatchThreshold)

	res, err := id.IdentifyFile(args[0])
	switch {
	case errors.Is(err, recognition.ErrNoFaceDetected):
		fmt.Println("No faces found: the image does not contain any detectable faces.")
		return nil
	case errors.Is(err, identify.ErrNoMatch):
		fmt.Printf("No matches found: %v\n", err)
		return nil
	case err != nil:
		return err
	}

	fmt.Println(res.Report())
	return nil
}

func cmdEnroll(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("name and at least one image required\nUsage: facetrack enroll <name> <image> [image...]")
	}
	name, images := args[0], args[1:]

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	store, err := openStore(engine)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Extracting faces"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var templates []recognition.Template
	for _, path := range images {
		tmpl, err := templateFromFile(engine, path)
		_ = bar.Add(1)
		if err != nil {
			logging.WithError(err).WithField("image", path).Warn("Skipping image")
			continue
		}
		templates = append(templates, tmpl)
	}
	_ = bar.Finish()

	id, err := store.Enroll(name, templates...)
	if errors.Is(err, storage.ErrNoTemplates) {
		return fmt.Errorf("no usable face found in %d image(s)", len(images))
	}
	if err != nil {
		return err
	}

	if err := store.Save(cfg.MemoryPath()); err != nil {
		return err
	}

	fmt.Printf("Enrolled '%s' as ID %d from %d of %d image(s).\n", name, id, len(templates), len(images))
	return nil
}

func templateFromFile(engine recognition.Engine, path string) (recognition.Template, error) {
	img, err := identify.LoadStill(path)
	if err != nil {
		return nil, err
	}
	box, err := engine.DetectFace(img)
	if err != nil {
		return nil, err
	}
	return engine.ExtractTemplate(img, box)
}

func cmdList(args []string) error {
	logging.Debug("Listing identities")

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	store, err := openStore(engine)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ids := store.IDs()
	if len(ids) == 0 {
		fmt.Println("No identities known.")
		return nil
	}

	fmt.Println("Known identities:")
	for _, id := range ids {
		name := store.Name(id)
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  %4d  %s\n", id, name)
	}
	fmt.Printf("\nTotal: %d identit(ies)\n", len(ids))

	return nil
}

func cmdName(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("id required\nUsage: facetrack name <id> [name]")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", args[0], err)
	}
	name := ""
	if len(args) > 1 {
		name = args[1]
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	store, err := openStore(engine)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SetName(id, name); err != nil {
		return err
	}
	if err := store.Save(cfg.MemoryPath()); err != nil {
		return err
	}

	if name == "" {
		fmt.Printf("Identity %d forgotten.\n", id)
	} else {
		fmt.Printf("Identity %d is now '%s'.\n", id, name)
	}
	return nil
}
