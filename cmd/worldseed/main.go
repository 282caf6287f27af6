// Command worldseed loads a world-definition file (entities, their
// prototypes/locations, and verbs) into a repository, so a fresh database
// doesn't start out as an empty container.
//
// Grounded on the teacher's single-purpose provisioning commands
// (cmd/create-wallet, cmd/deploy-*): no subcommands, a handful of flags, a
// sequential top-to-bottom run that fails fast on the first error.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/worldcore/internal/domain/entity"
	"github.com/R3E-Network/worldcore/internal/domain/verbdom"
	"github.com/R3E-Network/worldcore/internal/storage"
	"github.com/R3E-Network/worldcore/internal/storage/postgres"
)

// worldDef is the seed file's shape. Entities are created in list order, so
// a prototype_ref or location_ref must name an entity that appears earlier
// in the list (or not at all, for the roots).
type worldDef struct {
	Entities []entityDef `json:"entities"`
	Verbs    []verbDef   `json:"verbs"`
}

type entityDef struct {
	Ref          string         `json:"ref"`
	Kind         entity.Kind    `json:"kind"`
	PrototypeRef string         `json:"prototype_ref,omitempty"`
	LocationRef  string         `json:"location_ref,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

type verbDef struct {
	EntityRef   string             `json:"entity_ref"`
	Name        string             `json:"name"`
	Code        any                `json:"code"`
	Permissions verbdom.Permissions `json:"permissions,omitempty"`
}

func main() {
	file := flag.String("file", "", "path to a JSON world-definition file (required)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (in-memory storage when empty; useful with -dry-run)")
	dryRun := flag.Bool("dry-run", false, "validate and report without requiring persistent storage")
	flag.Parse()

	if strings.TrimSpace(*file) == "" {
		log.Fatal("-file is required")
	}

	log_ := logrus.NewEntry(logrus.StandardLogger())

	def, err := loadWorldDef(*file)
	if err != nil {
		log.Fatalf("load world definition: %v", err)
	}

	repo, closeStore := openStore(*dsn, *dryRun, log_)
	defer closeStore()

	if err := seed(context.Background(), repo, def, log_); err != nil {
		log.Fatalf("seed: %v", err)
	}
}

func loadWorldDef(path string) (worldDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return worldDef{}, err
	}
	var def worldDef
	if err := json.Unmarshal(raw, &def); err != nil {
		return worldDef{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return def, nil
}

func openStore(dsn string, dryRun bool, log *logrus.Entry) (storage.Store, func()) {
	if dsn == "" || dryRun {
		if !dryRun {
			log.Warn("no -dsn given; seeding an in-memory store that is discarded on exit")
		}
		return storage.NewMemory(), func() {}
	}
	db, err := postgres.Open(context.Background(), dsn)
	if err != nil {
		log.WithError(err).Fatal("connect to postgres")
	}
	return postgres.New(db), func() { _ = db.Close() }
}

// seed walks def in order, resolving each ref against entities already
// created this run, then attaches verbs in a second pass so a verb may
// reference any entity regardless of declaration order.
func seed(ctx context.Context, repo storage.Store, def worldDef, log *logrus.Entry) error {
	ids := make(map[string]int64, len(def.Entities))

	for _, ed := range def.Entities {
		if ed.Ref == "" {
			return fmt.Errorf("entity definition missing ref")
		}
		switch ed.Kind {
		case entity.KindZone, entity.KindRoom, entity.KindActor, entity.KindItem, entity.KindPart, entity.KindExit:
		default:
			return fmt.Errorf("entity %q: unknown kind %q", ed.Ref, ed.Kind)
		}
		e := entity.Entity{Kind: ed.Kind, Properties: ed.Properties}
		if ed.PrototypeRef != "" {
			id, ok := ids[ed.PrototypeRef]
			if !ok {
				return fmt.Errorf("entity %q: unknown prototype_ref %q", ed.Ref, ed.PrototypeRef)
			}
			e.Prototype = &id
		}
		if ed.LocationRef != "" {
			id, ok := ids[ed.LocationRef]
			if !ok {
				return fmt.Errorf("entity %q: unknown location_ref %q", ed.Ref, ed.LocationRef)
			}
			e.Location = &id
		}
		created, err := repo.CreateEntity(ctx, e)
		if err != nil {
			return fmt.Errorf("create entity %q: %w", ed.Ref, err)
		}
		ids[ed.Ref] = created.ID
		log.WithFields(logrus.Fields{"ref": ed.Ref, "id": created.ID, "kind": created.Kind}).Info("created entity")
	}

	for _, vd := range def.Verbs {
		id, ok := ids[vd.EntityRef]
		if !ok {
			return fmt.Errorf("verb %q: unknown entity_ref %q", vd.Name, vd.EntityRef)
		}
		v := verbdom.Verb{EntityID: id, Name: vd.Name, Code: vd.Code, Permissions: vd.Permissions}
		if _, err := repo.AddVerb(ctx, v); err != nil {
			return fmt.Errorf("add verb %q on %q: %w", vd.Name, vd.EntityRef, err)
		}
		log.WithFields(logrus.Fields{"entity_ref": vd.EntityRef, "verb": vd.Name}).Info("added verb")
	}

	log.WithFields(logrus.Fields{"entities": len(def.Entities), "verbs": len(def.Verbs)}).Info("seed complete")
	return nil
}
