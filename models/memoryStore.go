package models

import (
	"context"
	"sort"
	"sync"

	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store. Transactions work on a copy that is swapped in on success.
type MemoryStore struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state memoryState
	// inTx marks the view handed to a Transaction callback; nested calls run inline
	inTx bool
}

type memoryState struct {
	products    map[int]Product
	inventory   *Inventory
	records     map[int]Record
	nextProduct int
	nextRecord  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func newMemoryState() memoryState {
	return memoryState{
		products:    map[int]Product{},
		records:     map[int]Record{},
		nextProduct: 1,
		nextRecord:  1,
	}
}

func (st memoryState) clone() memoryState {
	out := memoryState{
		products:    make(map[int]Product, len(st.products)),
		records:     make(map[int]Record, len(st.records)),
		nextProduct: st.nextProduct,
		nextRecord:  st.nextRecord,
	}
	for id, p := range st.products {
		out.products[id] = p
	}
	for id, r := range st.records {
		r.Products = cloneProducts(r.Products)
		out.records[id] = r
	}
	if st.inventory != nil {
		inv := *st.inventory
		out.inventory = &inv
	}
	return out
}

// lockWrite also takes txMu so a direct write cannot be lost under a committing transaction.
func (s *MemoryStore) lockWrite() {
	if !s.inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
}

func (s *MemoryStore) unlockWrite() {
	s.mu.Unlock()
	if !s.inTx {
		s.txMu.Unlock()
	}
}

func (s *MemoryStore) nameTaken(normalized string, exceptId int) bool {
	for id, p := range s.state.products {
		if id != exceptId && p.NormalizedName == normalized {
			return true
		}
	}
	return false
}

func (s *MemoryStore) AddProduct(ctx context.Context, product *Product) error {
	s.lockWrite()
	defer s.unlockWrite()
	if product.NormalizedName == "" {
		product.NormalizedName = utils.NormalizeName(product.Name)
	}
	if s.nameTaken(product.NormalizedName, 0) {
		return ErrDuplicateProductName
	}
	now := utils.NowFromContext(ctx)
	product.ID = s.state.nextProduct
	product.CreatedAt = now
	product.UpdatedAt = now
	s.state.nextProduct++
	s.state.products[product.ID] = *product
	return nil
}

func (s *MemoryStore) ReplaceProducts(ctx context.Context, products []Product) error {
	s.lockWrite()
	defer s.unlockWrite()
	seen := make(map[string]bool, len(products))
	for i := range products {
		if products[i].NormalizedName == "" {
			products[i].NormalizedName = utils.NormalizeName(products[i].Name)
		}
		if seen[products[i].NormalizedName] {
			return ErrDuplicateProductName
		}
		seen[products[i].NormalizedName] = true
	}
	now := utils.NowFromContext(ctx)
	s.state.products = make(map[int]Product, len(products))
	for i := range products {
		products[i].ID = s.state.nextProduct
		products[i].CreatedAt = now
		products[i].UpdatedAt = now
		s.state.nextProduct++
		s.state.products[products[i].ID] = products[i]
	}
	return nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id int) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.products[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]Product, 0, len(s.state.products))
	for _, p := range s.state.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, id int, fields ProductFields) (*Product, error) {
	s.lockWrite()
	defer s.unlockWrite()
	p, ok := s.state.products[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	applyFields(&p, fields)
	if fields.Name != nil && s.nameTaken(p.NormalizedName, id) {
		return nil, ErrDuplicateProductName
	}
	p.UpdatedAt = utils.NowFromContext(ctx)
	s.state.products[id] = p
	return &p, nil
}

func (s *MemoryStore) AdjustLosses(ctx context.Context, id int, losses decimal.Decimal, final decimal.Decimal) (*Product, error) {
	s.lockWrite()
	defer s.unlockWrite()
	p, ok := s.state.products[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	p.Losses = losses
	p.FinalProducts = decimal.NewNullDecimal(final)
	p.UpdatedAt = utils.NowFromContext(ctx)
	s.state.products[id] = p
	return &p, nil
}

func (s *MemoryStore) DeleteProducts(ctx context.Context, ids []int) (int, error) {
	s.lockWrite()
	defer s.unlockWrite()
	deleted := 0
	for _, id := range ids {
		if _, ok := s.state.products[id]; ok {
			delete(s.state.products, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) ClearProducts(ctx context.Context) error {
	s.lockWrite()
	defer s.unlockWrite()
	s.state.products = map[int]Product{}
	return nil
}

func (s *MemoryStore) GetInventory(ctx context.Context) (*Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.inventory == nil {
		return nil, utils.ErrorRecordNotFound
	}
	inv := *s.state.inventory
	inv.Products = nil
	return &inv, nil
}

func (s *MemoryStore) PutInventory(ctx context.Context, inventory *Inventory) error {
	s.lockWrite()
	defer s.unlockWrite()
	inventory.ID = ActiveInventoryId
	inventory.UpdatedAt = utils.NowFromContext(ctx)
	inv := *inventory
	inv.Products = nil
	s.state.inventory = &inv
	return nil
}

func (s *MemoryStore) ClearInventory(ctx context.Context) error {
	s.lockWrite()
	defer s.unlockWrite()
	s.state.inventory = nil
	return nil
}

func (s *MemoryStore) AddRecord(ctx context.Context, record *Record) error {
	s.lockWrite()
	defer s.unlockWrite()
	record.ID = s.state.nextRecord
	record.CreatedAt = utils.NowFromContext(ctx)
	s.state.nextRecord++
	stored := *record
	stored.Products = cloneProducts(record.Products)
	s.state.records[record.ID] = stored
	return nil
}

func (s *MemoryStore) ListRecords(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]Record, 0, len(s.state.records))
	for _, r := range s.state.records {
		r.Products = cloneProducts(r.Products)
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID > records[j].ID })
	return records, nil
}

func (s *MemoryStore) GetRecord(ctx context.Context, id int) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.records[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	r.Products = cloneProducts(r.Products)
	return &r, nil
}

func (s *MemoryStore) DeleteRecord(ctx context.Context, id int) error {
	s.lockWrite()
	defer s.unlockWrite()
	if _, ok := s.state.records[id]; !ok {
		return utils.ErrorRecordNotFound
	}
	delete(s.state.records, id)
	return nil
}

func (s *MemoryStore) DeleteAllRecords(ctx context.Context) (int, error) {
	s.lockWrite()
	defer s.unlockWrite()
	n := len(s.state.records)
	s.state.records = map[int]Record{}
	return n, nil
}

// Transaction serializes writers: fn sees a private copy of the state, committed only when fn succeeds.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	view := &MemoryStore{state: s.state.clone(), inTx: true}
	s.mu.RUnlock()

	if err := fn(view); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = view.state
	s.mu.Unlock()
	return nil
}
