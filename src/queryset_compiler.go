package queries

import (
	"context"
	"database/sql/driver"

	"github.com/Nigel2392/go-django-queryset/src/expr"
	"github.com/Nigel2392/go-django/src/core/attrs"
)

// QueryCompiler turns the resolved parts of a queryset into executable
// statements for one concrete database dialect.
type QueryCompiler interface {
	// DB returns the database connection used by the query compiler.
	DB() DB

	// DatabaseName returns the registry name of the connection the
	// compiler was built for.
	DatabaseName() string

	// Driver returns the database driver, used to resolve
	// driver-specific lookups.
	Driver() driver.Driver

	// Quote returns the identifier quote used by the database.
	//
	// For example, MySQL uses backticks (`) and PostgreSQL uses double quotes (").
	Quote() string

	// SupportsReturning returns the type of returning supported by the database.
	// It can be one of the following:
	//
	// - SupportsReturningNone: no returning supported
	// - SupportsReturningLastInsertId: last insert id supported
	// - SupportsReturningColumns: returning columns supported
	SupportsReturning() SupportsReturning

	// BuildSelectQuery builds a select query over the root table and its
	// joined relations, yielding raw rows in field-info order.
	BuildSelectQuery(
		ctx context.Context,
		fields []*FieldInfo,
		where []expr.Expression,
		joins []JoinDef,
		orderBy []OrderBy,
		limit int,
		offset int,
		distinct bool,
	) ValuesListQuery

	// BuildCountQuery builds a query counting distinct root objects.
	BuildCountQuery(
		ctx context.Context,
		where []expr.Expression,
		joins []JoinDef,
		limit int,
		offset int,
	) CountQuery

	// BuildExistsQuery builds a query reporting whether any row matches.
	BuildExistsQuery(
		ctx context.Context,
		where []expr.Expression,
		joins []JoinDef,
	) ExistsQuery

	// BuildCreateQuery builds a single-row insert.
	//
	// The returned values depend on the dialect's returning support:
	// the last insert id, the written columns, or nothing.
	BuildCreateQuery(
		ctx context.Context,
		primary attrs.Field,
		fields []attrs.Field,
		values []any,
	) Query[[]any]

	// BuildBulkCreateQuery builds a single multi-row insert.
	//
	// On dialects with column returning it yields one primary key value
	// per inserted row, in insertion order.
	BuildBulkCreateQuery(
		ctx context.Context,
		primary attrs.Field,
		fields []attrs.Field,
		values [][]any,
	) Query[[]any]

	// BuildUpdateQuery builds an update of the given fields for every
	// row matching the where clause.
	BuildUpdateQuery(
		ctx context.Context,
		fields []attrs.Field,
		values []any,
		where []expr.Expression,
	) CountQuery

	// BuildBulkUpdateQuery builds a prepared per-primary-key update
	// executed once per row, returning the total rows affected.
	BuildBulkUpdateQuery(
		ctx context.Context,
		primary attrs.Field,
		fields []attrs.Field,
		rows [][]any,
		pks []any,
	) CountQuery

	// BuildDeleteQuery builds a delete for every row matching the where
	// clause.
	BuildDeleteQuery(
		ctx context.Context,
		where []expr.Expression,
	) CountQuery
}
