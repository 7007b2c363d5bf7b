package main

import (
	"github.com/kailas-cloud/vixbridge/internal/provider/jsonl"
	"github.com/kailas-cloud/vixbridge/internal/provider/mongo"
	"github.com/kailas-cloud/vixbridge/internal/provider/redis"
	"github.com/kailas-cloud/vixbridge/internal/provider/sqlite"
	"github.com/kailas-cloud/vixbridge/internal/usecase/bridge"
)

// builtinRegistry registers every provider compiled into the binary.
func builtinRegistry() *bridge.Registry {
	r := bridge.NewRegistry()
	r.Register(redis.Name, "Redis/Valkey search indexes (FT.SEARCH)", redis.Factory)
	r.Register(mongo.Name, "MongoDB collections", mongo.Factory)
	r.Register(sqlite.Name, "SQLite tables", sqlite.Factory)
	r.Register(jsonl.Name, "JSON Lines files filtered with CEL", jsonl.Factory)
	return r
}
