// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// WAFFLE passes DBDeps by value between hooks, so the services built in
// Startup hang off a pointer.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Store         docstore.Store

	Services *Services
}
