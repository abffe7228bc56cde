package commands

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"sort"
	"time"

	"github.com/systmms/credvault/internal/catalog"
	"github.com/systmms/credvault/internal/config"
	"github.com/systmms/credvault/internal/crypto"
	"github.com/systmms/credvault/internal/incident"
	"github.com/systmms/credvault/internal/registry"
	"github.com/systmms/credvault/internal/store"
	"github.com/systmms/credvault/pkg/secretref"
)

// env is everything a command needs to talk to the ledger. close releases
// the encryption key and any database handle.
type env struct {
	registry  *registry.Registry
	encryptor crypto.Encryptor
	alarms    *incident.Manager
	close     func()
}

// buildEnv assembles the registry from the loaded configuration.
func buildEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	def, err := config.Load(cfg.Path)
	if err != nil {
		return nil, err
	}

	enc, err := crypto.FromSource(keySource(def))
	if err != nil {
		return nil, err
	}

	var (
		st      store.Store
		audit   store.AuditLog
		closeDB func()
	)
	if def.Store.Dialect == "memory" {
		mem := store.NewMemory()
		st, audit = mem, mem.Audit()
		closeDB = func() {}
	} else {
		db, err := store.Open(ctx, store.Dialect(def.Store.Dialect), def.Store.DSN)
		if err != nil {
			enc.Destroy()
			return nil, err
		}
		st, audit = db, db.Audit()
		closeDB = func() { _ = db.Close() }
	}

	cat := catalog.Builtin()
	if def.Catalog.Dir != "" {
		if err := cat.LoadDir(def.Catalog.Dir); err != nil {
			enc.Destroy()
			closeDB()
			return nil, err
		}
	}

	alarms := incident.NewManager(def.Alarms.Dir)

	reg, err := registry.New(registry.Options{
		Encryptor: enc,
		Store:     st,
		Audit:     audit,
		Catalog:   cat,
		Alarms:    alarms,
		Logger:    cfg.Logger,
	})
	if err != nil {
		enc.Destroy()
		closeDB()
		return nil, err
	}

	return &env{
		registry:  reg,
		encryptor: enc,
		alarms:    alarms,
		close: func() {
			enc.Destroy()
			closeDB()
		},
	}, nil
}

func keySource(def *config.Definition) crypto.KeySource {
	chain := crypto.ChainKeySource{}
	if def.Encryption.KeyEnv != "" {
		chain = append(chain, crypto.EnvKeySource{Var: def.Encryption.KeyEnv})
	} else {
		chain = append(chain, crypto.EnvKeySource{})
	}
	chain = append(chain, crypto.KeyringSource{
		Service: def.Encryption.KeyringService,
		Account: def.Encryption.KeyringAccount,
	})
	return chain
}

// currentActor identifies the operator for audit records.
func currentActor() secretref.Actor {
	actor := secretref.Actor{ID: "cli"}
	if u, err := user.Current(); err == nil && u.Username != "" {
		actor.ID = u.Username
	}
	if email := os.Getenv("CREDVAULT_ACTOR_EMAIL"); email != "" {
		actor.Email = email
	}
	return actor
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

// sortMetadata orders listings by scope then name for stable output.
func sortMetadata(items []secretref.Metadata) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Scope != items[j].Scope {
			return items[i].Scope < items[j].Scope
		}
		return items[i].Name < items[j].Name
	})
}

func parseExpiry(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --expires value (want RFC3339): %w", err)
	}
	return &t, nil
}
