package internal

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/Nigel2392/go-django-queryset/src/drivers"
	"github.com/Nigel2392/go-django-queryset/src/query_errors"
	"github.com/Nigel2392/go-django/src/core/attrs"
	"github.com/jmoiron/sqlx"
)

// DefaultDatabase is the database key used when no explicit
// database name is given to a queryset.
const DefaultDatabase = "default"

var (
	databasesMu sync.RWMutex
	databases   = make(map[string]*sql.DB)
)

// RegisterDatabase registers a database connection under the given name.
//
// Querysets resolve their connection through this registry, either by the
// name passed to `Objects(model, "name")` or by [DefaultDatabase].
func RegisterDatabase(name string, db *sql.DB) {
	if name == "" {
		name = DefaultDatabase
	}
	if db == nil {
		panic("RegisterDatabase: db is nil")
	}
	databasesMu.Lock()
	databases[name] = db
	databasesMu.Unlock()
}

// Database returns the database connection registered under the given name.
func Database(name string) (*sql.DB, error) {
	if name == "" {
		name = DefaultDatabase
	}
	databasesMu.RLock()
	var db, ok = databases[name]
	databasesMu.RUnlock()
	if !ok {
		return nil, query_errors.ErrNoDatabase
	}
	return db, nil
}

func DefinerListToList[T attrs.Definer](list []attrs.Definer) []T {
	var result = make([]T, len(list))
	for i, obj := range list {
		result[i] = obj.(T)
	}
	return result
}

func NewDefiner[T attrs.Definer]() T {
	return NewObjectFromIface(*new(T)).(T)
}

func NewObjectFromIface(obj attrs.Definer) attrs.Definer {
	var objTyp = reflect.TypeOf(obj)
	if objTyp.Kind() != reflect.Ptr {
		panic("newObjectFromIface: objTyp is not a pointer")
	}
	return reflect.New(objTyp.Elem()).Interface().(attrs.Definer)
}

// safer alias generator
func NewJoinAlias(field attrs.Field, tableName string, chain []string) string {
	var l = len(chain)
	return fmt.Sprintf("%s_%s_%d", field.ColumnName(), tableName, l-1)
}

// RelatedModel resolves the model a relation field points at, along with
// the relation type of the hop.
//
// Fields defined with a `RelForeignKey`/`RelOneToOne` field config expose
// the target through ForeignKey()/OneToOne(); relation fields built by the
// fields package expose an attrs.Relation through Rel().
func RelatedModel(f attrs.Field) (attrs.Definer, attrs.RelationType, bool) {
	if fk, ok := f.(interface{ ForeignKey() attrs.Definer }); ok && fk.ForeignKey() != nil {
		return fk.ForeignKey(), attrs.RelManyToOne, true
	}
	if o2o, ok := f.(interface{ OneToOne() attrs.Relation }); ok && o2o.OneToOne() != nil {
		return o2o.OneToOne().Model(), attrs.RelOneToOne, true
	}
	if rel := f.Rel(); rel != nil {
		return rel.Model(), rel.Type(), true
	}
	var none attrs.RelationType
	return nil, none, false
}

// WalkFields walks a `.`-separated field path starting at m, crossing
// relations for every part except the last.
//
// It returns the model owning the final field, the parent model of the
// last relation hop, the final field itself, the relation chain (all parts
// except the last), the join alias per hop, the relation type per hop and
// whether the path crossed at least one relation.
func WalkFields(
	m attrs.Definer,
	column string,
) (
	definer attrs.Definer,
	parent attrs.Definer,
	f attrs.Field,
	chain []string,
	aliases []string,
	relTypes []attrs.RelationType,
	isRelated bool,
	err error,
) {
	var parts = strings.Split(column, ".")
	var current = m
	var field attrs.Field

	chain = make([]string, 0, len(parts)-1)
	aliases = make([]string, 0, len(parts)-1)
	relTypes = make([]attrs.RelationType, 0, len(parts)-1)

	for i, part := range parts {
		defs := current.FieldDefs()
		f, ok := defs.Field(part)
		if !ok {
			return nil, nil, nil, nil, nil, nil, false, fmt.Errorf("field %q not found in %T", part, current)
		}
		field = f

		if i == len(parts)-1 {
			break
		}

		chain = append(chain, part)
		alias := NewJoinAlias(f, defs.TableName(), chain)
		aliases = append(aliases, alias)
		parent = current

		var next, relTyp, ok2 = RelatedModel(f)
		if !ok2 {
			return nil, nil, nil, nil, nil, nil, false, fmt.Errorf("field %q is not a relation", part)
		}
		if next == nil {
			return nil, nil, nil, nil, nil, nil, false, fmt.Errorf("field %q has no related model", part)
		}

		relTypes = append(relTypes, relTyp)
		current = next
		isRelated = true
	}

	return current, parent, field, chain, aliases, relTypes, isRelated, nil
}

type QueryInfo struct {
	DB          *sql.DB
	DBX         interface{ Rebind(string) string }
	SqlxDriver  string
	TableName   string
	Definitions attrs.Definitions
	Primary     attrs.Field
	Fields      []attrs.Field
}

func GetBaseQueryInfo(obj attrs.Definer) (*QueryInfo, error) {
	var fieldDefs = obj.FieldDefs()
	var primary = fieldDefs.Primary()
	var tableName = fieldDefs.TableName()
	if tableName == "" {
		return nil, query_errors.ErrNoTableName
	}

	return &QueryInfo{
		Definitions: fieldDefs,
		TableName:   tableName,
		Primary:     primary,
		Fields:      fieldDefs.Fields(),
	}, nil
}

func GetQueryInfo(obj attrs.Definer, database string) (*QueryInfo, error) {
	var db, err = Database(database)
	if err != nil {
		return nil, err
	}

	var sqlxDriver = drivers.Name(db)
	if sqlxDriver == "" {
		return nil, query_errors.ErrUnknownDriver
	}

	var dbx = sqlx.NewDb(db, sqlxDriver)

	queryInfo, err := GetBaseQueryInfo(obj)
	if err != nil {
		return nil, err
	}

	queryInfo.DB = db
	queryInfo.DBX = dbx
	queryInfo.SqlxDriver = sqlxDriver
	return queryInfo, nil
}
