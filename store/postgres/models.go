package postgres

import "time"

type valueModel struct {
	ResKey      string `gorm:"column:res_key;primaryKey;type:varchar(255)"`
	Locale      string `gorm:"primaryKey;type:varchar(35);index"`
	Value       string `gorm:"type:text;not null"`
	Description string `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (valueModel) TableName() string { return "string_values" }

type arrayModel struct {
	ID          int64            `gorm:"primaryKey;autoIncrement"`
	ResKey      string           `gorm:"column:res_key;type:varchar(255);not null;uniqueIndex:idx_string_arrays_key_locale"`
	Locale      string           `gorm:"type:varchar(35);not null;uniqueIndex:idx_string_arrays_key_locale"`
	Description string           `gorm:"type:text;not null;default:''"`
	Items       []arrayItemModel `gorm:"foreignKey:ArrayID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (arrayModel) TableName() string { return "string_arrays" }

type arrayItemModel struct {
	ArrayID  int64  `gorm:"primaryKey;autoIncrement:false"`
	Position int    `gorm:"primaryKey;autoIncrement:false"`
	Value    string `gorm:"type:text;not null"`
}

func (arrayItemModel) TableName() string { return "string_array_items" }

type pluralModel struct {
	ID          int64                 `gorm:"primaryKey;autoIncrement"`
	ResKey      string                `gorm:"column:res_key;type:varchar(255);not null;uniqueIndex:idx_string_plurals_key_locale"`
	Locale      string                `gorm:"type:varchar(35);not null;uniqueIndex:idx_string_plurals_key_locale"`
	Description string                `gorm:"type:text;not null;default:''"`
	Forms       []pluralQuantityModel `gorm:"foreignKey:PluralID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (pluralModel) TableName() string { return "string_plurals" }

type pluralQuantityModel struct {
	PluralID int64  `gorm:"primaryKey;autoIncrement:false"`
	Quantity string `gorm:"primaryKey;type:varchar(16)"`
	Position int    `gorm:"not null"`
	Value    string `gorm:"type:text;not null"`
}

func (pluralQuantityModel) TableName() string { return "string_plural_quantities" }

func allModels() []any {
	return []any{
		&valueModel{},
		&arrayModel{}, &arrayItemModel{},
		&pluralModel{}, &pluralQuantityModel{},
	}
}
