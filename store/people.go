package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"roster/record"
)

var (
	ErrNotFound    = errors.New("person not found")
	ErrEmptyRecord = errors.New("record has no values")
)

// KeyField is the document field backed by the indexed email column.
const KeyField = "email"

const insertBatchSize = 200

// lookupBatchSize bounds the IN list of one lookup query; SQLite rejects
// statements with more than 32766 bound variables.
const lookupBatchSize = 1000

// reservedKeys are document keys owned by the store; they are dropped from
// incoming documents.
var reservedKeys = []string{"_id", "__v", "createdAt", "updatedAt"}

// KeyFunc derives the duplicate key stored in the email column.
type KeyFunc func(record.Record) string

type PeopleOptions struct {
	// SearchFields are matched by Filter.Query. Defaults to name, email,
	// city, phone and age.
	SearchFields []string
	// AgeField is the numeric field bounded by Filter.MinAge/MaxAge.
	AgeField string
}

// People is the document store for person records.
type People struct {
	db           *gorm.DB
	key          KeyFunc
	searchFields []string
	ageField     string
}

func NewPeople(db *gorm.DB, key KeyFunc, opts PeopleOptions) *People {
	if key == nil {
		key = func(record.Record) string { return "" }
	}
	if len(opts.SearchFields) == 0 {
		opts.SearchFields = []string{"name", "email", "city", "phone", "age"}
	}
	if opts.AgeField == "" {
		opts.AgeField = "age"
	}
	return &People{db: db, key: key, searchFields: opts.SearchFields, ageField: opts.AgeField}
}

// FindWhereFieldIn returns the documents whose field equals one of values.
// The email field is compared case-insensitively against the key column;
// results for it carry only that field. Values are looked up in chunks of
// lookupBatchSize inside one read transaction.
func (p *People) FindWhereFieldIn(ctx context.Context, field string, values []string) ([]record.Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if field == KeyField {
		return p.findKeys(ctx, values)
	}

	path, err := jsonPath(field)
	if err != nil {
		return nil, err
	}
	var rows []Person
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, chunk := range chunks(distinct(values), lookupBatchSize) {
			var part []Person
			if err := tx.Where("json_extract(data, ?) IN ?", path, chunk).Find(&part).Error; err != nil {
				return err
			}
			rows = append(rows, part...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to look up field %q", field)
	}
	return records(rows)
}

func (p *People) findKeys(ctx context.Context, values []string) ([]record.Record, error) {
	lowered := make([]string, len(values))
	for i, v := range values {
		lowered[i] = strings.ToLower(strings.TrimSpace(v))
	}
	var keys []string
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, chunk := range chunks(distinct(lowered), lookupBatchSize) {
			var part []string
			if err := tx.Model(&Person{}).
				Distinct("email").
				Where("email IN ?", chunk).
				Pluck("email", &part).Error; err != nil {
				return err
			}
			keys = append(keys, part...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up keys")
	}
	out := make([]record.Record, len(keys))
	for i, k := range keys {
		out[i] = record.New(record.Field{Name: KeyField, Value: record.String(k)})
	}
	return out, nil
}

// InsertMany stores recs in one transaction and returns how many rows were
// written.
func (p *People) InsertMany(ctx context.Context, recs []record.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	rows := make([]Person, 0, len(recs))
	for _, r := range recs {
		row, err := p.newPerson(r)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, insertBatchSize).Error
	})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to insert %d people", len(rows))
	}
	return len(rows), nil
}

func (p *People) Get(ctx context.Context, id uint) (Entry, error) {
	var row Person
	err := p.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, errors.Wrapf(err, "failed to get person %d", id)
	}
	return entryOf(row)
}

// Create stores one document after dropping reserved keys.
func (p *People) Create(ctx context.Context, r record.Record) (Entry, error) {
	r = clean(r)
	if r.Empty() {
		return Entry{}, ErrEmptyRecord
	}
	row, err := p.newPerson(r)
	if err != nil {
		return Entry{}, err
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Entry{}, errors.Wrap(err, "failed to create person")
	}
	return entryOf(row)
}

// Update replaces the document with id and recomputes its key.
func (p *People) Update(ctx context.Context, id uint, r record.Record) (Entry, error) {
	r = clean(r)
	if r.Empty() {
		return Entry{}, ErrEmptyRecord
	}
	data, err := json.Marshal(r)
	if err != nil {
		return Entry{}, errors.Wrap(err, "failed to encode record")
	}
	res := p.db.WithContext(ctx).Model(&Person{}).Where("id = ?", id).Updates(map[string]any{
		"email":      p.key(r),
		"data":       datatypes.JSON(data),
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return Entry{}, errors.Wrapf(res.Error, "failed to update person %d", id)
	}
	if res.RowsAffected == 0 {
		return Entry{}, ErrNotFound
	}
	return p.Get(ctx, id)
}

func (p *People) Delete(ctx context.Context, id uint) error {
	res := p.db.WithContext(ctx).Delete(&Person{}, id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to delete person %d", id)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes the given ids and returns how many existed.
func (p *People) DeleteMany(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := p.db.WithContext(ctx).Where("id IN ?", ids).Delete(&Person{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to delete people")
	}
	return res.RowsAffected, nil
}

// Clear removes every document.
func (p *People) Clear(ctx context.Context) (int64, error) {
	res := p.db.WithContext(ctx).Where("1 = 1").Delete(&Person{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to clear people")
	}
	return res.RowsAffected, nil
}

// Filter narrows Search. Zero values disable a bound; Limit 0 returns every
// match.
type Filter struct {
	Query  string
	MinAge *float64
	MaxAge *float64
	Limit  int
}

// Search returns matching documents, newest first, and the total number of
// matches.
func (p *People) Search(ctx context.Context, f Filter) ([]Entry, int64, error) {
	scope, err := p.filterScope(f)
	if err != nil {
		return nil, 0, err
	}

	var (
		rows  []Person
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := p.db.WithContext(gctx).Scopes(scope).Order("id DESC")
		if f.Limit > 0 {
			q = q.Limit(f.Limit)
		}
		return q.Find(&rows).Error
	})
	g.Go(func() error {
		return p.db.WithContext(gctx).Model(&Person{}).Scopes(scope).Count(&total).Error
	})
	if err := g.Wait(); err != nil {
		return nil, 0, errors.Wrap(err, "failed to search people")
	}

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e, err := entryOf(row)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "failed to decode person %d", row.ID)
		}
		out = append(out, e)
	}
	return out, total, nil
}

func (p *People) filterScope(f Filter) (func(*gorm.DB) *gorm.DB, error) {
	var conds []string
	var args []any

	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		var ors []string
		for _, field := range p.searchFields {
			path, err := jsonPath(field)
			if err != nil {
				return nil, err
			}
			ors = append(ors, `LOWER(CAST(json_extract(data, ?) AS TEXT)) LIKE ? ESCAPE '\'`)
			args = append(args, path, pattern)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if f.MinAge != nil || f.MaxAge != nil {
		path, err := jsonPath(p.ageField)
		if err != nil {
			return nil, err
		}
		if f.MinAge != nil {
			conds = append(conds, "CAST(json_extract(data, ?) AS REAL) >= ?")
			args = append(args, path, *f.MinAge)
		}
		if f.MaxAge != nil {
			conds = append(conds, "CAST(json_extract(data, ?) AS REAL) <= ?")
			args = append(args, path, *f.MaxAge)
		}
		conds = append(conds, "json_extract(data, ?) IS NOT NULL")
		args = append(args, path)
	}

	return func(db *gorm.DB) *gorm.DB {
		if len(conds) == 0 {
			return db
		}
		return db.Where(strings.Join(conds, " AND "), args...)
	}, nil
}

func (p *People) newPerson(r record.Record) (Person, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return Person{}, errors.Wrap(err, "failed to encode record")
	}
	return Person{Email: p.key(r), Data: datatypes.JSON(data)}, nil
}

func clean(r record.Record) record.Record {
	r = r.Clone()
	for _, k := range reservedKeys {
		r.Delete(k)
	}
	return r
}

func records(rows []Person) ([]record.Record, error) {
	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		r, err := row.Record()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode person %d", row.ID)
		}
		out = append(out, r)
	}
	return out, nil
}

// jsonPath quotes field as a SQLite JSON path member.
func jsonPath(field string) (string, error) {
	if field == "" || strings.ContainsAny(field, `"\`) {
		return "", fmt.Errorf("unsupported field name %q", field)
	}
	return `$."` + field + `"`, nil
}

// distinct drops repeated values, keeping first occurrences in order.
func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func chunks(values []string, size int) [][]string {
	var out [][]string
	for len(values) > size {
		out = append(out, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
