package queries

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"context"

	"github.com/Nigel2392/go-django-queryset/internal"
	"github.com/Nigel2392/go-django-queryset/src/drivers"
	"github.com/Nigel2392/go-django-queryset/src/expr"
	"github.com/Nigel2392/go-django/src/core/attrs"
	"github.com/pkg/errors"
)

var _ QueryCompiler = (*GenericQueryBuilder)(nil)

type GenericQueryBuilder struct {
	queryInfo *internal.QueryInfo
	database  string
	support   SupportsReturning
	quote     string
	driver    driver.Driver
}

func NewGenericQueryBuilder(model attrs.Definer, defaultDB string) QueryCompiler {
	var q, err = internal.GetQueryInfo(model, defaultDB)
	if err != nil {
		panic(err)
	}

	var quote = "`"
	switch q.SqlxDriver {
	case "mysql", "sqlite3":
		quote = "`"
	case "postgres", "pgx":
		quote = "\""
	}

	return &GenericQueryBuilder{
		quote:     quote,
		database:  defaultDB,
		support:   drivers.SupportsReturning(q.DB),
		driver:    q.DB.Driver(),
		queryInfo: q,
	}
}

func (g *GenericQueryBuilder) DB() DB {
	return g.queryInfo.DB
}

func (g *GenericQueryBuilder) DatabaseName() string {
	return g.database
}

func (g *GenericQueryBuilder) Driver() driver.Driver {
	return g.driver
}

func (g *GenericQueryBuilder) Quote() string {
	return g.quote
}

func (g *GenericQueryBuilder) SupportsReturning() SupportsReturning {
	return g.support
}

func (g *GenericQueryBuilder) model() attrs.Definer {
	return g.queryInfo.Definitions.Instance()
}

func (g *GenericQueryBuilder) BuildSelectQuery(
	ctx context.Context,
	fields []*FieldInfo,
	where []expr.Expression,
	joins []JoinDef,
	orderBy []OrderBy,
	limit int,
	offset int,
	distinct bool,
) ValuesListQuery {
	var (
		query = new(strings.Builder)
		args  []any
		model = g.model()
	)

	query.WriteString("SELECT ")

	if distinct {
		query.WriteString("DISTINCT ")
	}

	for i, info := range fields {
		if i > 0 {
			query.WriteString(", ")
		}
		info.WriteFields(query, g.quote)
	}

	query.WriteString(" FROM ")
	g.writeTableName(query)
	g.writeJoins(query, joins)
	args = append(args, g.writeWhereClause(query, model, where)...)
	g.writeOrderBy(query, orderBy)
	args = append(args, g.writeLimitOffset(query, limit, offset)...)

	return &QueryObject[[][]any]{
		sql:   g.queryInfo.DBX.Rebind(query.String()),
		model: model,
		args:  args,
		exec: func(sql string, args ...any) ([][]any, error) {
			rows, err := g.DB().QueryContext(ctx, sql, args...)
			if err != nil {
				return nil, errors.Wrap(err, "failed to execute query")
			}

			defer rows.Close()

			var amountCols = 0
			for _, info := range fields {
				amountCols += len(info.Fields)
			}

			var results = make([][]any, 0, 8)
			for rows.Next() {
				var row = make([]any, amountCols)
				for i := range row {
					row[i] = new(any)
				}
				if err = rows.Scan(row...); err != nil {
					return nil, errors.Wrap(err, "failed to scan row")
				}

				var result = make([]any, amountCols)
				for i, iface := range row {
					result[i] = *(iface.(*any))
				}

				results = append(results, result)
			}

			if err := rows.Err(); err != nil {
				return nil, errors.Wrap(err, "failed to iterate rows")
			}

			return results, nil
		},
	}
}

func (g *GenericQueryBuilder) BuildCountQuery(
	ctx context.Context,
	where []expr.Expression,
	joins []JoinDef,
	limit int,
	offset int,
) CountQuery {
	var model = g.model()
	var query = new(strings.Builder)
	var args []any

	// joined to-many chains fan the root out over multiple rows, so
	// count distinct primary keys through a subquery when needed
	if len(joins) > 0 || limit > 0 || offset > 0 {
		query.WriteString("SELECT COUNT(*) FROM (SELECT DISTINCT ")
		g.writeTableName(query)
		query.WriteString(".")
		query.WriteString(g.quote)
		query.WriteString(g.queryInfo.Primary.ColumnName())
		query.WriteString(g.quote)
		query.WriteString(" FROM ")
		g.writeTableName(query)
		g.writeJoins(query, joins)
		args = append(args, g.writeWhereClause(query, model, where)...)
		args = append(args, g.writeLimitOffset(query, limit, offset)...)
		query.WriteString(") AS ")
		query.WriteString(g.quote)
		query.WriteString("subquery")
		query.WriteString(g.quote)
	} else {
		query.WriteString("SELECT COUNT(*) FROM ")
		g.writeTableName(query)
		args = append(args, g.writeWhereClause(query, model, where)...)
	}

	return &QueryObject[int64]{
		sql:   g.queryInfo.DBX.Rebind(query.String()),
		model: model,
		args:  args,
		exec: func(query string, args ...any) (int64, error) {
			var count int64
			var row = g.DB().QueryRowContext(ctx, query, args...)
			if err := row.Scan(&count); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return 0, nil
				}
				return 0, errors.Wrap(err, "failed to scan row")
			}
			return count, nil
		},
	}
}

func (g *GenericQueryBuilder) BuildExistsQuery(
	ctx context.Context,
	where []expr.Expression,
	joins []JoinDef,
) ExistsQuery {
	var model = g.model()
	var query = new(strings.Builder)
	query.WriteString("SELECT EXISTS(SELECT 1 FROM ")
	g.writeTableName(query)
	g.writeJoins(query, joins)
	var args = g.writeWhereClause(query, model, where)
	query.WriteString(" LIMIT 1)")

	return &QueryObject[bool]{
		sql:   g.queryInfo.DBX.Rebind(query.String()),
		model: model,
		args:  args,
		exec: func(query string, args ...any) (bool, error) {
			var exists bool
			var row = g.DB().QueryRowContext(ctx, query, args...)
			if err := row.Scan(&exists); err != nil {
				return false, errors.Wrap(err, "failed to scan row")
			}
			return exists, nil
		},
	}
}

func (g *GenericQueryBuilder) BuildCreateQuery(
	ctx context.Context,
	primary attrs.Field,
	fields []attrs.Field,
	values []any,
) Query[[]any] {
	var model = g.model()
	var query = new(strings.Builder)
	query.WriteString("INSERT INTO ")
	g.writeTableName(query)
	query.WriteString(" (")

	for i, field := range fields {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString(g.quote)
		query.WriteString(field.ColumnName())
		query.WriteString(g.quote)
	}

	query.WriteString(") VALUES (")

	for i := range fields {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString("?")
	}

	query.WriteString(")")

	var support = g.support

	switch support {
	case SupportsReturningLastInsertId:
		// Handled in the exec function, do nothing

	case SupportsReturningColumns:
		query.WriteString(" RETURNING ")

		var written = false
		if primary != nil {
			query.WriteString(g.quote)
			query.WriteString(primary.ColumnName())
			query.WriteString(g.quote)
			written = true
		}

		for _, field := range fields {
			if written {
				query.WriteString(", ")
			}
			query.WriteString(g.quote)
			query.WriteString(field.ColumnName())
			query.WriteString(g.quote)
			written = true
		}
	case SupportsReturningNone:
		// do nothing

	default:
		panic(fmt.Errorf("returning not supported: %s", support))
	}

	return &QueryObject[[]any]{
		sql:   g.queryInfo.DBX.Rebind(query.String()),
		model: model,
		args:  values,
		exec: func(query string, args ...any) ([]any, error) {
			switch support {
			case SupportsReturningLastInsertId:
				var res, err = g.DB().ExecContext(ctx, query, args...)
				if err != nil {
					return nil, errors.Wrap(err, "failed to execute query")
				}

				lastId, err := res.LastInsertId()
				if err != nil {
					return nil, errors.Wrap(err, "failed to get last insert id")
				}

				return []any{lastId}, nil

			case SupportsReturningColumns:
				var resLen = len(fields)
				if primary != nil {
					resLen++
				}

				var result = make([]any, resLen)
				for i := range result {
					result[i] = new(any)
				}

				var row = g.DB().QueryRowContext(ctx, query, args...)
				if err := row.Scan(result...); err != nil {
					return nil, errors.Wrap(err, "failed to scan row")
				}

				for i, iface := range result {
					result[i] = *(iface.(*any))
				}

				return result, nil

			case SupportsReturningNone:
				var _, err = g.DB().ExecContext(ctx, query, args...)
				if err != nil {
					return nil, errors.Wrap(err, "failed to execute query")
				}
				return nil, nil

			default:
				panic(fmt.Errorf("returning not supported: %s", support))
			}
		},
	}
}

func (g *GenericQueryBuilder) BuildBulkCreateQuery(
	ctx context.Context,
	primary attrs.Field,
	fields []attrs.Field,
	values [][]any,
) Query[[]any] {
	var model = g.model()
	var query = new(strings.Builder)
	query.WriteString("INSERT INTO ")
	g.writeTableName(query)
	query.WriteString(" (")

	for i, field := range fields {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString(g.quote)
		query.WriteString(field.ColumnName())
		query.WriteString(g.quote)
	}

	query.WriteString(") VALUES ")

	var args = make([]any, 0, len(values)*len(fields))
	for i, row := range values {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString("(")
		for j := range fields {
			if j > 0 {
				query.WriteString(", ")
			}
			query.WriteString("?")
		}
		query.WriteString(")")
		args = append(args, row...)
	}

	var support = g.support
	if support == SupportsReturningColumns && primary != nil {
		query.WriteString(" RETURNING ")
		query.WriteString(g.quote)
		query.WriteString(primary.ColumnName())
		query.WriteString(g.quote)
	}

	return &QueryObject[[]any]{
		sql:   g.queryInfo.DBX.Rebind(query.String()),
		model: model,
		args:  args,
		exec: func(query string, args ...any) ([]any, error) {
			if support == SupportsReturningColumns && primary != nil {
				rows, err := g.DB().QueryContext(ctx, query, args...)
				if err != nil {
					return nil, errors.Wrap(err, "failed to execute query")
				}
				defer rows.Close()

				var pks = make([]any, 0, len(values))
				for rows.Next() {
					var pk any
					if err := rows.Scan(&pk); err != nil {
						return nil, errors.Wrap(err, "failed to scan row")
					}
					pks = append(pks, pk)
				}
				if err := rows.Err(); err != nil {
					return nil, errors.Wrap(err, "failed to iterate rows")
				}
				return pks, nil
			}

			var _, err = g.DB().ExecContext(ctx, query, args...)
			if err != nil {
				return nil, errors.Wrap(err, "failed to execute query")
			}
			return nil, nil
		},
	}
}

func (g *GenericQueryBuilder) BuildUpdateQuery(
	ctx context.Context,
	fields []attrs.Field,
	values []any,
	where []expr.Expression,
) CountQuery {
	var model = g.model()
	var query = new(strings.Builder)
	query.WriteString("UPDATE ")
	g.writeTableName(query)
	query.WriteString(" SET ")

	for i, field := range fields {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString(g.quote)
		query.WriteString(field.ColumnName())
		query.WriteString(g.quote)
		query.WriteString(" = ?")
	}

	var args = make([]any, 0, len(values))
	args = append(args, values...)
	args = append(args, g.writeWhereClause(query, model, where)...)

	return &QueryObject[int64]{
		sql:   g.queryInfo.DBX.Rebind(query.String()),
		model: model,
		args:  args,
		exec: func(sql string, args ...any) (int64, error) {
			result, err := g.DB().ExecContext(ctx, sql, args...)
			if err != nil {
				return 0, err
			}
			return result.RowsAffected()
		},
	}
}

func (g *GenericQueryBuilder) BuildBulkUpdateQuery(
	ctx context.Context,
	primary attrs.Field,
	fields []attrs.Field,
	rows [][]any,
	pks []any,
) CountQuery {
	var model = g.model()
	var query = new(strings.Builder)
	query.WriteString("UPDATE ")
	g.writeTableName(query)
	query.WriteString(" SET ")

	for i, field := range fields {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString(g.quote)
		query.WriteString(field.ColumnName())
		query.WriteString(g.quote)
		query.WriteString(" = ?")
	}

	query.WriteString(" WHERE ")
	query.WriteString(g.quote)
	query.WriteString(primary.ColumnName())
	query.WriteString(g.quote)
	query.WriteString(" = ?")

	return &QueryObject[int64]{
		sql:   g.queryInfo.DBX.Rebind(query.String()),
		model: model,
		args:  nil,
		exec: func(sql string, _ ...any) (int64, error) {
			stmt, err := g.DB().PrepareContext(ctx, sql)
			if err != nil {
				return 0, errors.Wrap(err, "failed to prepare query")
			}
			defer stmt.Close()

			var total int64
			for i, row := range rows {
				var args = make([]any, 0, len(row)+1)
				args = append(args, row...)
				args = append(args, pks[i])

				res, err := stmt.ExecContext(ctx, args...)
				if err != nil {
					return total, errors.Wrap(err, "failed to execute query")
				}

				affected, err := res.RowsAffected()
				if err != nil {
					return total, errors.Wrap(err, "failed to get rows affected")
				}
				total += affected
			}
			return total, nil
		},
	}
}

func (g *GenericQueryBuilder) BuildDeleteQuery(
	ctx context.Context,
	where []expr.Expression,
) CountQuery {
	var model = g.model()
	var query = new(strings.Builder)
	query.WriteString("DELETE FROM ")
	g.writeTableName(query)

	var args = make([]any, 0)
	args = append(args, g.writeWhereClause(query, model, where)...)

	return &QueryObject[int64]{
		sql:   g.queryInfo.DBX.Rebind(query.String()),
		model: model,
		args:  args,
		exec: func(sql string, args ...any) (int64, error) {
			result, err := g.DB().ExecContext(ctx, sql, args...)
			if err != nil {
				return 0, err
			}
			return result.RowsAffected()
		},
	}
}

func (g *GenericQueryBuilder) writeTableName(sb *strings.Builder) {
	sb.WriteString(g.quote)
	sb.WriteString(g.queryInfo.TableName)
	sb.WriteString(g.quote)
}

func (g *GenericQueryBuilder) writeJoins(sb *strings.Builder, joins []JoinDef) {
	for _, join := range joins {
		sb.WriteString(" ")
		sb.WriteString(join.TypeJoin)
		sb.WriteString(" ")
		sb.WriteString(g.quote)
		sb.WriteString(join.Table)
		sb.WriteString(g.quote)
		sb.WriteString(" AS ")
		sb.WriteString(g.quote)
		sb.WriteString(join.Alias)
		sb.WriteString(g.quote)
		sb.WriteString(" ON ")
		sb.WriteString(join.ConditionA)
		sb.WriteString(" ")
		sb.WriteString(join.Logic)
		sb.WriteString(" ")
		sb.WriteString(join.ConditionB)
	}
}

func (g *GenericQueryBuilder) writeWhereClause(sb *strings.Builder, model attrs.Definer, where []expr.Expression) []any {
	var args = make([]any, 0)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		args = append(
			args, buildWhereClause(sb, g.driver, model, g.quote, where)...,
		)
	}
	return args
}

func (g *GenericQueryBuilder) writeOrderBy(sb *strings.Builder, orderBy []OrderBy) {
	if len(orderBy) > 0 {
		sb.WriteString(" ORDER BY ")

		for i, field := range orderBy {
			if i > 0 {
				sb.WriteString(", ")
			}

			if field.Alias != "" {
				sb.WriteString(g.quote)
				sb.WriteString(field.Alias)
				sb.WriteString(g.quote)
			} else {
				sb.WriteString(g.quote)
				sb.WriteString(field.Table)
				sb.WriteString(g.quote)
			}
			sb.WriteString(".")
			sb.WriteString(g.quote)
			sb.WriteString(field.Field)
			sb.WriteString(g.quote)

			if field.Desc {
				sb.WriteString(" DESC")
			} else {
				sb.WriteString(" ASC")
			}
		}
	}
}

func (g *GenericQueryBuilder) writeLimitOffset(sb *strings.Builder, limit int, offset int) []any {
	var args = make([]any, 0)
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	if offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, offset)
	}
	return args
}

func buildWhereClause(b *strings.Builder, d driver.Driver, model attrs.Definer, quote string, exprs []expr.Expression) []any {
	var args = make([]any, 0)
	for i, e := range exprs {
		e := e.With(d, model, quote)
		e.SQL(b)
		if i < len(exprs)-1 {
			b.WriteString(" AND ")
		}
		args = append(args, e.Args()...)
	}

	return args
}
