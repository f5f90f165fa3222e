package queries

import (
	"context"

	"github.com/Nigel2392/go-django/src/core/attrs"
	"github.com/Nigel2392/go-django/src/forms/fields"
	"github.com/Nigel2392/go-django/src/models"
	"github.com/Nigel2392/goldcrest"
	"github.com/go-sql-driver/mysql"
	pg_stdlib "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

func init() {
	RegisterDriver(&mysql.MySQLDriver{}, "mysql", SupportsReturningLastInsertId)
	RegisterDriver(&sqlite3.SQLiteDriver{}, "sqlite3", SupportsReturningColumns)
	RegisterDriver(&pg_stdlib.Driver{}, "postgres", SupportsReturningColumns)

	RegisterCompiler(&mysql.MySQLDriver{}, NewGenericQueryBuilder)
	RegisterCompiler(&sqlite3.SQLiteDriver{}, NewGenericQueryBuilder)
	RegisterCompiler(&pg_stdlib.Driver{}, NewGenericQueryBuilder)

	goldcrest.Register(models.MODEL_SAVE_HOOK, 0, models.ModelFunc(func(c context.Context, m attrs.Definer) (changed bool, err error) {
		if u, ok := m.(ForUseInQueries); ok && !u.ForUseInQueries() {
			return false, nil
		}

		var (
			defs         = m.FieldDefs()
			primaryField = defs.Primary()
		)
		if primaryField == nil {
			return false, nil
		}

		primaryValue, err := primaryField.Value()
		if err != nil {
			return false, err
		}

		if primaryValue == nil || fields.IsZero(primaryValue) {
			if _, err := Objects(m).Create(c, m); err != nil {
				return false, err
			}
			return true, nil
		}

		values, err := updateValues(m)
		if err != nil {
			return false, err
		}

		ct, err := Objects(m).
			Filter(primaryField.Name(), primaryValue).
			Update(c, values)
		return ct > 0, err
	}))

	goldcrest.Register(models.MODEL_DELETE_HOOK, 0, models.ModelFunc(func(c context.Context, m attrs.Definer) (changed bool, err error) {
		if u, ok := m.(ForUseInQueries); ok && !u.ForUseInQueries() {
			return false, nil
		}

		var (
			defs         = m.FieldDefs()
			primaryField = defs.Primary()
		)
		if primaryField == nil {
			return false, nil
		}

		primaryValue, err := primaryField.Value()
		if err != nil {
			return false, err
		}

		if primaryValue == nil || fields.IsZero(primaryValue) {
			return false, nil
		}

		ct, err := Objects(m).
			Filter(primaryField.Name(), primaryValue).
			Delete(c)
		return ct > 0, err
	}))
}
