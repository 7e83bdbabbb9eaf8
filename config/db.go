package config

import (
	dbm "github.com/tendermint/tm-db"
)

// DBProvider opens the database the fulfilled-request ledger persists into.
type DBProvider func(*Config) (dbm.DB, error)

// DefaultDBProvider returns a database using the DBBackend and DBDir
// specified in the Config.
func DefaultDBProvider(cfg *Config) (dbm.DB, error) {
	return dbm.NewDB("netfulfilled", dbm.BackendType(cfg.DBBackend), cfg.DBDir())
}
