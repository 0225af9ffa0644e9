package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
)

// collection describes a header table with ordered child rows, the layout
// shared by arrays and plurals.
type collection struct {
	kind        resource.Kind
	headerTable string
	childTable  string
	parentCol   string
}

var (
	arrays = collection{
		kind:        resource.KindArray,
		headerTable: "string_arrays",
		childTable:  "string_array_items",
		parentCol:   "array_id",
	}
	plurals = collection{
		kind:        resource.KindPlural,
		headerTable: "string_plurals",
		childTable:  "string_plural_quantities",
		parentCol:   "plural_id",
	}
)

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return store.Fail(op, err)
	}

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return store.Fail(op, err)
	}

	if err = tx.Commit(); err != nil {
		return store.Fail(op, err)
	}
	return nil
}

func (c collection) headerID(ctx context.Context, tx *sql.Tx, key, locale string) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE res_key = ? AND locale = ?`, c.headerTable),
		key, locale).Scan(&id)
	if err != nil {
		if store.ErrorIsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func (c collection) insertHeader(ctx context.Context, tx *sql.Tx, key, locale, desc string, now int64) (int64, error) {
	result, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (res_key, locale, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			c.headerTable),
		key, locale, desc, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%s %s/%s: %w", c.kind, locale, key, store.ErrAlreadyExists)
		}
		return 0, err
	}
	return result.LastInsertId()
}

func (c collection) updateHeader(ctx context.Context, tx *sql.Tx, key, locale, desc string, now int64) (int64, error) {
	id, found, err := c.headerID(ctx, tx, key, locale)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%s %s/%s: %w", c.kind, locale, key, store.ErrNotFound)
	}

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET description = ?, updated_at = ? WHERE id = ?`, c.headerTable),
		desc, now, id); err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, c.childTable, c.parentCol), id); err != nil {
		return 0, err
	}
	return id, nil
}

func (c collection) delete(ctx context.Context, tx *sql.Tx, key, locale string) error {
	id, found, err := c.headerID(ctx, tx, key, locale)
	if err != nil || !found {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, c.childTable, c.parentCol), id); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.headerTable), id)
	return err
}

func insertArrayItems(ctx context.Context, tx *sql.Tx, id int64, items []string) error {
	for position, item := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO string_array_items (array_id, position, value) VALUES (?, ?, ?)`,
			id, position, item); err != nil {
			return err
		}
	}
	return nil
}

func insertPluralForms(ctx context.Context, tx *sql.Tx, id int64, forms []resource.PluralForm) error {
	for position, form := range forms {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO string_plural_quantities (plural_id, quantity, position, value) VALUES (?, ?, ?, ?)`,
			id, form.Quantity.String(), position, form.Text); err != nil {
			return err
		}
	}
	return nil
}

// GetArray returns the array for key and locale with items in stored order.
func (s *Store) GetArray(ctx context.Context, key, locale string) (*resource.Array, error) {
	const op = "get array"
	if err := s.ready(ctx, op); err != nil {
		return nil, err
	}

	var (
		id    int64
		array = resource.Array{Items: []string{}}
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, res_key, locale, description FROM string_arrays WHERE res_key = ? AND locale = ?`,
		key, locale).Scan(&id, &array.Key, &array.Locale, &array.Desc)
	if err != nil {
		if store.ErrorIsNoRows(err) {
			return nil, nil
		}
		return nil, store.Fail(op, err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT value FROM string_array_items WHERE array_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, store.Fail(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item string
		if err = rows.Scan(&item); err != nil {
			return nil, store.Fail(op, err)
		}
		array.Items = append(array.Items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, store.Fail(op, err)
	}
	return &array, nil
}

// InsertArray stores the array header and its items in one transaction.
func (s *Store) InsertArray(ctx context.Context, array resource.Array) error {
	const op = "insert array"
	if err := store.Validate(array); err != nil {
		return err
	}
	if err := s.ready(ctx, op); err != nil {
		return err
	}

	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		id, err := arrays.insertHeader(ctx, tx, array.Key, array.Locale, array.Desc, s.millis())
		if err != nil {
			return err
		}
		return insertArrayItems(ctx, tx, id, array.Items)
	})
}

// UpdateArray replaces the items and description of an existing array.
func (s *Store) UpdateArray(ctx context.Context, array resource.Array) error {
	const op = "update array"
	if err := store.Validate(array); err != nil {
		return err
	}
	if err := s.ready(ctx, op); err != nil {
		return err
	}

	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		id, err := arrays.updateHeader(ctx, tx, array.Key, array.Locale, array.Desc, s.millis())
		if err != nil {
			return err
		}
		return insertArrayItems(ctx, tx, id, array.Items)
	})
}

// DeleteArray removes an array and its items.
func (s *Store) DeleteArray(ctx context.Context, key, locale string) error {
	const op = "delete array"
	if err := s.ready(ctx, op); err != nil {
		return err
	}
	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		return arrays.delete(ctx, tx, key, locale)
	})
}

// GetPlural returns the plural for key and locale with forms in stored order.
func (s *Store) GetPlural(ctx context.Context, key, locale string) (*resource.Plural, error) {
	const op = "get plural"
	if err := s.ready(ctx, op); err != nil {
		return nil, err
	}

	var (
		id     int64
		plural resource.Plural
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, res_key, locale, description FROM string_plurals WHERE res_key = ? AND locale = ?`,
		key, locale).Scan(&id, &plural.Key, &plural.Locale, &plural.Desc)
	if err != nil {
		if store.ErrorIsNoRows(err) {
			return nil, nil
		}
		return nil, store.Fail(op, err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT quantity, value FROM string_plural_quantities WHERE plural_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, store.Fail(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var quantity, text string
		if err = rows.Scan(&quantity, &text); err != nil {
			return nil, store.Fail(op, err)
		}
		plural.Set(resource.ParseQuantity(quantity), text)
	}
	if err = rows.Err(); err != nil {
		return nil, store.Fail(op, err)
	}
	return &plural, nil
}

// InsertPlural stores the plural header and its forms in one transaction.
func (s *Store) InsertPlural(ctx context.Context, plural resource.Plural) error {
	const op = "insert plural"
	if err := store.Validate(plural); err != nil {
		return err
	}
	if err := s.ready(ctx, op); err != nil {
		return err
	}

	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		id, err := plurals.insertHeader(ctx, tx, plural.Key, plural.Locale, plural.Desc, s.millis())
		if err != nil {
			return err
		}
		return insertPluralForms(ctx, tx, id, plural.Forms)
	})
}

// UpdatePlural replaces the forms and description of an existing plural.
func (s *Store) UpdatePlural(ctx context.Context, plural resource.Plural) error {
	const op = "update plural"
	if err := store.Validate(plural); err != nil {
		return err
	}
	if err := s.ready(ctx, op); err != nil {
		return err
	}

	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		id, err := plurals.updateHeader(ctx, tx, plural.Key, plural.Locale, plural.Desc, s.millis())
		if err != nil {
			return err
		}
		return insertPluralForms(ctx, tx, id, plural.Forms)
	})
}

// DeletePlural removes a plural and its forms.
func (s *Store) DeletePlural(ctx context.Context, key, locale string) error {
	const op = "delete plural"
	if err := s.ready(ctx, op); err != nil {
		return err
	}
	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		return plurals.delete(ctx, tx, key, locale)
	})
}
