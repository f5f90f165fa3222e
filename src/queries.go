package queries

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"

	"github.com/Nigel2392/go-django-queryset/internal"
	"github.com/Nigel2392/go-django-queryset/src/drivers"
	"github.com/Nigel2392/go-django/src/core/attrs"
)

type SupportsReturning = drivers.SupportsReturningType

const (
	SupportsReturningNone         SupportsReturning = drivers.SupportsReturningNone
	SupportsReturningLastInsertId SupportsReturning = drivers.SupportsReturningLastInsertId
	SupportsReturningColumns      SupportsReturning = drivers.SupportsReturningColumns
)

// DefaultDatabase is the registry key used when `Objects` is called
// without an explicit database name.
const DefaultDatabase = internal.DefaultDatabase

// RegisterDatabase registers a database connection under the given name.
//
// The connection's driver must also be registered with [RegisterDriver],
// otherwise the queryset cannot determine the bind-var dialect.
func RegisterDatabase(name string, db *sql.DB) {
	internal.RegisterDatabase(name, db)
}

// RegisterDriver registers a driver with the given database name.
//
// This is used to determine the database type when using sqlx.
//
// If your driver is not one of:
// - github.com/go-sql-driver/mysql.MySQLDriver
// - github.com/mattn/go-sqlite3.SQLiteDriver
// - github.com/jackc/pgx/v5/stdlib.Driver
//
// Then it explicitly needs to be registered here.
func RegisterDriver(d driver.Driver, database string, supportsReturning ...SupportsReturning) {
	drivers.RegisterDriver(d, database, supportsReturning...)
}

// RelatedField is an interface that can be implemented by fields to indicate
// that the field is a related field.
//
// If `GetTargetField()` returns nil, the primary field of the target model
// should be used instead.
type RelatedField interface {
	attrs.Field

	// This is used to determine the column name the relation matches on
	// at the target side of the join.
	GetTargetField() attrs.Field

	RelatedName() string
}

// ForUseInQueriesField is an interface that can be implemented by fields to
// indicate whether the field should be included in a `SELECT *` column list.
//
// This is mostly for fields that do not actually exist in the database,
// I.E. reverse fk, o2o
type ForUseInQueriesField interface {
	attrs.Field
	ForSelectAll() bool
}

// ForSelectAll returns true if the field should be selected in the query.
//
// If the field is nil, it returns false.
//
// If the field is a ForUseInQueriesField, it returns the result of `ForSelectAll()`.
//
// Otherwise, it returns true.
func ForSelectAll(f attrs.Field) bool {
	if f == nil {
		return false
	}
	if f, ok := f.(ForUseInQueriesField); ok {
		return f.ForSelectAll()
	}
	return true
}

// ModelDataStore is a simple key-value store attached to a model instance.
//
// Relations without a concrete struct field are stored in the model's
// data store under the relation name.
type ModelDataStore interface {
	HasValue(key string) bool
	GetValue(key string) (any, bool)
	SetValue(key string, value any) error
	DeleteValue(key string) error
}

// A model can adhere to this interface to indicate that the queries package
// should use the model to store and retrieve loosely typed values.
type DataModel interface {
	ModelDataStore() ModelDataStore
}

// A model can adhere to this interface to let the queries package flag
// it as persisted after create and bulk create operations.
type SaveableModel interface {
	Saved() bool
	SetSaved(saved bool)
}

// A model can adhere to this interface to indicate that the queries package
// should not automatically save or delete the model to/from the database when
// the go-django model save/delete hooks run.
type ForUseInQueries interface {
	attrs.Definer
	ForUseInQueries() bool
}

// This interface is compatible with `*sql.DB` and `*sql.Tx`.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

var compilerRegistry = make(map[reflect.Type]func(model attrs.Definer, defaultDB string) QueryCompiler)

// RegisterCompiler registers a compiler for a given driver.
//
// It should be used in the init() function of the package that implements the compiler.
//
// The compiler function should take a model and a database name as arguments,
// and return a QueryCompiler.
func RegisterCompiler(driver driver.Driver, compiler func(model attrs.Definer, defaultDB string) QueryCompiler) {
	var driverType = reflect.TypeOf(driver)
	if driverType == nil {
		panic("driver is nil")
	}

	compilerRegistry[driverType] = compiler
}

// Compiler returns a QueryCompiler for the given model and database name.
//
// If the database name is empty, the default database is used.
//
// If the database or its compiler is not registered, it panics.
func Compiler(model attrs.Definer, defaultDB string) QueryCompiler {
	if defaultDB == "" {
		defaultDB = internal.DefaultDatabase
	}

	var db, err = internal.Database(defaultDB)
	if err != nil {
		panic(fmt.Errorf(
			"no database connection found for %q: %w",
			defaultDB, err,
		))
	}

	var driverType = reflect.TypeOf(db.Driver())
	if driverType == nil {
		panic("driver is nil")
	}

	var compiler, ok = compilerRegistry[driverType]
	if !ok {
		panic(fmt.Errorf("no compiler registered for driver %T", db.Driver()))
	}

	return compiler(model, defaultDB)
}
