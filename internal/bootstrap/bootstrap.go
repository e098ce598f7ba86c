// Package bootstrap loads the one-time startup state files (§6.3):
// admins.json, moderators.json, genesis.json. Parsing is deliberately
// lenient — gjson is used instead of encoding/json so a malformed single
// entry doesn't prevent the rest of the file from loading; entries that
// don't decode are skipped with a logged warning rather than aborting
// startup.
package bootstrap

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/blackyblack/identity-server/internal/engine"
	"github.com/blackyblack/identity-server/internal/roles"
	"github.com/blackyblack/identity-server/internal/trust"
)

// LoadRoles reads admins.json and moderators.json from dir, if present,
// inserting each listed identity unconditionally (bootstrap=true bypasses
// the admin-gated authorization the runtime API enforces).
func LoadRoles(dir string, store *roles.Store, logger *slog.Logger) {
	loadIdentityList(filepath.Join(dir, "admins.json"), logger, func(u string) {
		if err := store.AddAdmin("", u, true); err != nil {
			logger.Warn("bootstrap admin insert failed", "user", u, "error", err)
		}
	})
	loadIdentityList(filepath.Join(dir, "moderators.json"), logger, func(u string) {
		if err := store.AddModerator("", u, true); err != nil {
			logger.Warn("bootstrap moderator insert failed", "user", u, "error", err)
		}
	})
}

func loadIdentityList(path string, logger *slog.Logger, add func(u string)) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("bootstrap file unreadable", "path", path, "error", err)
		}
		return
	}
	if !gjson.ValidBytes(data) {
		logger.Warn("bootstrap file is not valid JSON", "path", path)
		return
	}
	result := gjson.ParseBytes(data)
	if !result.IsArray() {
		logger.Warn("bootstrap file is not a JSON array", "path", path)
		return
	}
	result.ForEach(func(_, entry gjson.Result) bool {
		if entry.Type != gjson.String || entry.String() == "" {
			logger.Warn("skipping non-string bootstrap entry", "path", path, "raw", entry.Raw)
			return true
		}
		add(entry.String())
		return true
	})
}

// LoadGenesis reads genesis.json, if present: an array of
// {"user": "<base58>", "idt": <int>}, each written as a proof record
// with engine.GenesisProofID, bypassing engine.MaxIDTByProof.
func LoadGenesis(dir string, store trust.Store, now func() int64, logger *slog.Logger) {
	path := filepath.Join(dir, "genesis.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("genesis file unreadable", "path", path, "error", err)
		}
		return
	}
	if !gjson.ValidBytes(data) {
		logger.Warn("genesis file is not valid JSON", "path", path)
		return
	}
	result := gjson.ParseBytes(data)
	if !result.IsArray() {
		logger.Warn("genesis file is not a JSON array", "path", path)
		return
	}

	result.ForEach(func(_, entry gjson.Result) bool {
		user := entry.Get("user")
		idt := entry.Get("idt")
		if user.Type != gjson.String || user.String() == "" || !idt.Exists() {
			logger.Warn("skipping malformed genesis entry", "raw", entry.Raw)
			return true
		}
		if err := store.SetProof(user.String(), idt.Int(), now(), engine.GenesisProofID); err != nil {
			logger.Warn("genesis proof insert failed", "user", user.String(), "error", err)
		}
		return true
	})
}
