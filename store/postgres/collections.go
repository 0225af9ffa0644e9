package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
)

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	db, err := s.ready(ctx, op)
	if err != nil {
		return err
	}
	return store.Fail(op, db.Transaction(fn))
}

func headerID(tx *gorm.DB, model any, key, locale string) (int64, bool, error) {
	var ids []int64
	err := tx.Model(model).Where("res_key = ? AND locale = ?", key, locale).Limit(1).Pluck("id", &ids).Error
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func arrayItems(id int64, items []string) []arrayItemModel {
	models := make([]arrayItemModel, 0, len(items))
	for position, item := range items {
		models = append(models, arrayItemModel{ArrayID: id, Position: position, Value: item})
	}
	return models
}

func pluralForms(id int64, forms []resource.PluralForm) []pluralQuantityModel {
	models := make([]pluralQuantityModel, 0, len(forms))
	for position, form := range forms {
		models = append(models, pluralQuantityModel{
			PluralID: id, Quantity: form.Quantity.String(), Position: position, Value: form.Text,
		})
	}
	return models
}

func createChildren[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

// GetArray returns the array for key and locale with items in stored order.
func (s *Store) GetArray(ctx context.Context, key, locale string) (*resource.Array, error) {
	const op = "get array"
	db, err := s.ready(ctx, op)
	if err != nil {
		return nil, err
	}

	var m arrayModel
	err = db.Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		Where("res_key = ? AND locale = ?", key, locale).First(&m).Error
	if err != nil {
		if store.ErrorIsNoRows(err) {
			return nil, nil
		}
		return nil, store.Fail(op, err)
	}

	array := resource.Array{Key: m.ResKey, Locale: m.Locale, Desc: m.Description, Items: make([]string, 0, len(m.Items))}
	for _, item := range m.Items {
		array.Items = append(array.Items, item.Value)
	}
	return &array, nil
}

// InsertArray stores the array header and its items in one transaction.
func (s *Store) InsertArray(ctx context.Context, array resource.Array) error {
	if err := store.Validate(array); err != nil {
		return err
	}

	return s.inTx(ctx, "insert array", func(tx *gorm.DB) error {
		now := s.timestamp()
		header := arrayModel{
			ResKey: array.Key, Locale: array.Locale, Description: array.Desc, CreatedAt: now, UpdatedAt: now,
		}
		if err := tx.Omit("Items").Create(&header).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("array %s/%s: %w", array.Locale, array.Key, store.ErrAlreadyExists)
			}
			return err
		}
		return createChildren(tx, arrayItems(header.ID, array.Items))
	})
}

// UpdateArray replaces the items and description of an existing array.
func (s *Store) UpdateArray(ctx context.Context, array resource.Array) error {
	if err := store.Validate(array); err != nil {
		return err
	}

	return s.inTx(ctx, "update array", func(tx *gorm.DB) error {
		id, found, err := headerID(tx, &arrayModel{}, array.Key, array.Locale)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("array %s/%s: %w", array.Locale, array.Key, store.ErrNotFound)
		}

		err = tx.Model(&arrayModel{}).Where("id = ?", id).
			Updates(map[string]any{"description": array.Desc, "updated_at": s.timestamp()}).Error
		if err != nil {
			return err
		}
		if err = tx.Where("array_id = ?", id).Delete(&arrayItemModel{}).Error; err != nil {
			return err
		}
		return createChildren(tx, arrayItems(id, array.Items))
	})
}

// DeleteArray removes an array and its items.
func (s *Store) DeleteArray(ctx context.Context, key, locale string) error {
	return s.inTx(ctx, "delete array", func(tx *gorm.DB) error {
		id, found, err := headerID(tx, &arrayModel{}, key, locale)
		if err != nil || !found {
			return err
		}
		if err = tx.Where("array_id = ?", id).Delete(&arrayItemModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&arrayModel{}).Error
	})
}

// GetPlural returns the plural for key and locale with forms in stored order.
func (s *Store) GetPlural(ctx context.Context, key, locale string) (*resource.Plural, error) {
	const op = "get plural"
	db, err := s.ready(ctx, op)
	if err != nil {
		return nil, err
	}

	var m pluralModel
	err = db.Preload("Forms", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		Where("res_key = ? AND locale = ?", key, locale).First(&m).Error
	if err != nil {
		if store.ErrorIsNoRows(err) {
			return nil, nil
		}
		return nil, store.Fail(op, err)
	}

	plural := resource.Plural{Key: m.ResKey, Locale: m.Locale, Desc: m.Description}
	for _, form := range m.Forms {
		plural.Set(resource.ParseQuantity(form.Quantity), form.Value)
	}
	return &plural, nil
}

// InsertPlural stores the plural header and its forms in one transaction.
func (s *Store) InsertPlural(ctx context.Context, plural resource.Plural) error {
	if err := store.Validate(plural); err != nil {
		return err
	}

	return s.inTx(ctx, "insert plural", func(tx *gorm.DB) error {
		now := s.timestamp()
		header := pluralModel{
			ResKey: plural.Key, Locale: plural.Locale, Description: plural.Desc, CreatedAt: now, UpdatedAt: now,
		}
		if err := tx.Omit("Forms").Create(&header).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("plural %s/%s: %w", plural.Locale, plural.Key, store.ErrAlreadyExists)
			}
			return err
		}
		return createChildren(tx, pluralForms(header.ID, plural.Forms))
	})
}

// UpdatePlural replaces the forms and description of an existing plural.
func (s *Store) UpdatePlural(ctx context.Context, plural resource.Plural) error {
	if err := store.Validate(plural); err != nil {
		return err
	}

	return s.inTx(ctx, "update plural", func(tx *gorm.DB) error {
		id, found, err := headerID(tx, &pluralModel{}, plural.Key, plural.Locale)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("plural %s/%s: %w", plural.Locale, plural.Key, store.ErrNotFound)
		}

		err = tx.Model(&pluralModel{}).Where("id = ?", id).
			Updates(map[string]any{"description": plural.Desc, "updated_at": s.timestamp()}).Error
		if err != nil {
			return err
		}
		if err = tx.Where("plural_id = ?", id).Delete(&pluralQuantityModel{}).Error; err != nil {
			return err
		}
		return createChildren(tx, pluralForms(id, plural.Forms))
	})
}

// DeletePlural removes a plural and its forms.
func (s *Store) DeletePlural(ctx context.Context, key, locale string) error {
	return s.inTx(ctx, "delete plural", func(tx *gorm.DB) error {
		id, found, err := headerID(tx, &pluralModel{}, key, locale)
		if err != nil || !found {
			return err
		}
		if err = tx.Where("plural_id = ?", id).Delete(&pluralQuantityModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&pluralModel{}).Error
	})
}
