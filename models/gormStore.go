package models

import (
	"context"
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps products, the inventory header and records in MySQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorRecordNotFound
	}
	return err
}

// isDuplicateKeyErr also catches 1062 from sessions opened without TranslateError.
func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyErr(err) {
		return ErrDuplicateProductName
	}
	return err
}

func (s *GormStore) AddProduct(ctx context.Context, product *Product) error {
	product.ID = 0
	return duplicate(s.db.WithContext(ctx).Create(product).Error)
}

func (s *GormStore) ReplaceProducts(ctx context.Context, products []Product) error {
	db := s.db.WithContext(ctx)
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Product{}).Error; err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}
	for i := range products {
		products[i].ID = 0
	}
	return duplicate(db.CreateInBatches(products, 100).Error)
}

func (s *GormStore) GetProduct(ctx context.Context, id int) (*Product, error) {
	var product Product
	if err := s.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (s *GormStore) ListProducts(ctx context.Context) ([]Product, error) {
	products := []Product{}
	if err := s.db.WithContext(ctx).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (s *GormStore) UpdateProduct(ctx context.Context, id int, fields ProductFields) (*Product, error) {
	cols := fieldColumns(fields)
	if len(cols) > 0 {
		result := s.db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Updates(cols)
		if result.Error != nil {
			return nil, duplicate(result.Error)
		}
	}
	return s.GetProduct(ctx, id)
}

// AdjustLosses writes losses and the back-solved final count in one statement.
func (s *GormStore) AdjustLosses(ctx context.Context, id int, losses decimal.Decimal, final decimal.Decimal) (*Product, error) {
	result := s.db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Updates(map[string]interface{}{
		"losses":         losses,
		"final_products": decimal.NewNullDecimal(final),
	})
	if result.Error != nil {
		return nil, result.Error
	}
	return s.GetProduct(ctx, id)
}

func (s *GormStore) DeleteProducts(ctx context.Context, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&Product{})
	return int(result.RowsAffected), result.Error
}

func (s *GormStore) ClearProducts(ctx context.Context) error {
	return s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Product{}).Error
}

func (s *GormStore) GetInventory(ctx context.Context) (*Inventory, error) {
	var inventory Inventory
	if err := s.db.WithContext(ctx).First(&inventory, ActiveInventoryId).Error; err != nil {
		return nil, notFound(err)
	}
	return &inventory, nil
}

func (s *GormStore) PutInventory(ctx context.Context, inventory *Inventory) error {
	inventory.ID = ActiveInventoryId
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"seller", "date", "time", "updated_at"}),
	}).Create(inventory).Error
}

func (s *GormStore) ClearInventory(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&Inventory{}, ActiveInventoryId).Error
}

func (s *GormStore) AddRecord(ctx context.Context, record *Record) error {
	record.ID = 0
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *GormStore) ListRecords(ctx context.Context) ([]Record, error) {
	records := []Record{}
	if err := s.db.WithContext(ctx).Order("id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *GormStore) GetRecord(ctx context.Context, id int) (*Record, error) {
	var record Record
	if err := s.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

func (s *GormStore) DeleteRecord(ctx context.Context, id int) error {
	result := s.db.WithContext(ctx).Delete(&Record{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func (s *GormStore) DeleteAllRecords(ctx context.Context) (int, error) {
	result := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Record{})
	return int(result.RowsAffected), result.Error
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func fieldColumns(fields ProductFields) map[string]interface{} {
	cols := map[string]interface{}{}
	if fields.Code != nil {
		cols["code"] = *fields.Code
	}
	if fields.Name != nil {
		cols["name"] = *fields.Name
		cols["normalized_name"] = utils.NormalizeName(*fields.Name)
	}
	if fields.Unit != nil {
		cols["unit"] = *fields.Unit
	}
	if fields.Cost != nil {
		cols["cost"] = *fields.Cost
	}
	if fields.Price != nil {
		cols["price"] = *fields.Price
	}
	if fields.InitialProducts != nil {
		cols["initial_products"] = *fields.InitialProducts
	}
	if fields.IncomingProducts != nil {
		cols["incoming_products"] = *fields.IncomingProducts
	}
	if fields.FinalProducts != nil {
		cols["final_products"] = *fields.FinalProducts
	}
	return cols
}
