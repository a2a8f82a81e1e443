// Package memory implements the repository interfaces on maps. It backs the
// service and handler tests and mirrors the Mongo semantics they rely on.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fashion-store/models"
	"fashion-store/repository"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// New returns an empty Store
func New() *repository.Store {
	return &repository.Store{
		Users:     NewUsers(),
		Products:  NewProducts(),
		Orders:    NewOrders(),
		Addresses: NewAddresses(),
		Payments:  NewPayments(),
	}
}

type Users struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func NewUsers() *Users {
	return &Users{users: map[primitive.ObjectID]models.User{}}
}

func (r *Users) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return errors.Wrapf(repository.ErrDuplicate, "user %s", user.Email)
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt, user.UpdatedAt = time.Now(), time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *Users) find(match func(models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, errors.Wrap(repository.ErrNotFound, "user")
}

func (r *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id })
}

func (r *Users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r *Users) FindByVerificationToken(_ context.Context, token string) (*models.User, error) {
	return r.find(func(u models.User) bool { return token != "" && u.VerificationToken == token })
}

func (r *Users) update(match func(models.User) bool, apply func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if match(u) {
			apply(&u)
			u.UpdatedAt = time.Now()
			r.users[id] = u
			return nil
		}
	}
	return errors.Wrap(repository.ErrNotFound, "user")
}

func byID(id primitive.ObjectID) func(models.User) bool {
	return func(u models.User) bool { return u.ID == id }
}

func (r *Users) MarkVerified(_ context.Context, id primitive.ObjectID) error {
	return r.update(byID(id), func(u *models.User) {
		u.IsVerified = true
		u.VerificationToken = ""
	})
}

func (r *Users) UpdateProfile(_ context.Context, id primitive.ObjectID, name, phone string) error {
	return r.update(byID(id), func(u *models.User) {
		u.Name = name
		u.Phone = phone
	})
}

func (r *Users) UpdateImage(_ context.Context, id primitive.ObjectID, image string) error {
	return r.update(byID(id), func(u *models.User) { u.Image = image })
}

func (r *Users) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	return r.update(byID(id), func(u *models.User) { u.Password = hash })
}

func (r *Users) SetRole(_ context.Context, email, role string) error {
	return r.update(func(u models.User) bool { return u.Email == email }, func(u *models.User) { u.Role = role })
}

type Products struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
	// Lists counts List calls
	Lists int
}

func NewProducts(products ...models.Product) *Products {
	r := &Products{products: map[primitive.ObjectID]models.Product{}}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *Products) List(_ context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lists++
	query := strings.ToLower(f.Query)
	out := []models.Product{}
	for _, p := range r.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Description+" "+p.Category), query) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := int64(len(out))
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * f.Limit
		if start > len(out) {
			start = len(out)
		}
		end := start + f.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (r *Products) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, errors.Wrap(repository.ErrNotFound, "product")
	}
	return &p, nil
}

func (r *Products) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	product.CreatedAt, product.UpdatedAt = time.Now(), time.Now()
	r.products[product.ID] = *product
	return nil
}

func (r *Products) Update(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.products[product.ID]
	if !ok {
		return errors.Wrap(repository.ErrNotFound, "product")
	}
	product.CreatedAt = old.CreatedAt
	product.UpdatedAt = time.Now()
	r.products[product.ID] = *product
	return nil
}

func (r *Products) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return errors.Wrap(repository.ErrNotFound, "product")
	}
	delete(r.products, id)
	return nil
}

func (r *Products) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return errors.Wrap(repository.ErrNotFound, "product")
	}
	if p.Stock < qty {
		return errors.Wrapf(repository.ErrInsufficientStock, "product %s", id.Hex())
	}
	p.Stock -= qty
	r.products[id] = p
	return nil
}

func (r *Products) RestoreStock(_ context.Context, id primitive.ObjectID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		p.Stock += qty
		r.products[id] = p
	}
	return nil
}

type Orders struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]models.Order
	// Fail makes every write return this error
	Fail error
}

func NewOrders() *Orders {
	return &Orders{orders: map[primitive.ObjectID]models.Order{}}
}

func (r *Orders) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	order.ID = primitive.NewObjectID()
	order.CreatedAt, order.UpdatedAt = time.Now(), time.Now()
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func (r *Orders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, errors.Wrap(repository.ErrNotFound, "order")
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *Orders) filter(match func(models.Order) bool) []models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Order{}
	for _, o := range r.orders {
		if match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *Orders) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return r.filter(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (r *Orders) List(_ context.Context, status models.OrderStatus) ([]models.Order, error) {
	return r.filter(func(o models.Order) bool { return status == "" || o.Status == status }), nil
}

func (r *Orders) mutate(id primitive.ObjectID, apply func(*models.Order) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	o, ok := r.orders[id]
	if !ok {
		return errors.Wrap(repository.ErrNotFound, "order")
	}
	if err := apply(&o); err != nil {
		return err
	}
	o.UpdatedAt = time.Now()
	r.orders[id] = o
	return nil
}

func (r *Orders) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to models.OrderStatus) error {
	return r.mutate(id, func(o *models.Order) error {
		if o.Status != from {
			return errors.Wrapf(repository.ErrStatusChanged, "order %s", id.Hex())
		}
		o.Status = to
		return nil
	})
}

func (r *Orders) SetPaymentID(_ context.Context, id primitive.ObjectID, paymentID string) error {
	return r.mutate(id, func(o *models.Order) error {
		o.PaymentID = paymentID
		return nil
	})
}

func (r *Orders) SetPaymentToken(_ context.Context, id primitive.ObjectID, token, redirectURL string) error {
	return r.mutate(id, func(o *models.Order) error {
		o.PaymentToken, o.PaymentURL = token, redirectURL
		return nil
	})
}

func (r *Orders) ResetPayment(_ context.Context, id primitive.ObjectID, status models.OrderStatus) error {
	return r.mutate(id, func(o *models.Order) error {
		o.Status = status
		o.PaymentToken, o.PaymentURL = "", ""
		return nil
	})
}

type Addresses struct {
	mu        sync.Mutex
	addresses map[primitive.ObjectID]models.Address
	seq       time.Time
}

func NewAddresses() *Addresses {
	return &Addresses{addresses: map[primitive.ObjectID]models.Address{}, seq: time.Now()}
}

func (r *Addresses) byUser(userID primitive.ObjectID) []models.Address {
	out := []models.Address{}
	for _, a := range r.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *Addresses) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byUser(userID), nil
}

func (r *Addresses) FindByID(_ context.Context, userID, id primitive.ObjectID) (*models.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addresses[id]
	if !ok || a.UserID != userID {
		return nil, errors.Wrap(repository.ErrNotFound, "address")
	}
	return &a, nil
}

func (r *Addresses) Default(_ context.Context, userID primitive.ObjectID) (*models.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.addresses {
		if a.UserID == userID && a.IsDefault {
			return &a, nil
		}
	}
	return nil, errors.Wrap(repository.ErrNotFound, "default address")
}

func (r *Addresses) Create(_ context.Context, address *models.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byUser(address.UserID)) == 0 {
		address.IsDefault = true
	}
	// strictly increasing timestamps keep "most recent" well defined
	r.seq = r.seq.Add(time.Millisecond)
	address.ID = primitive.NewObjectID()
	address.CreatedAt, address.UpdatedAt = r.seq, r.seq
	r.addresses[address.ID] = *address
	if address.IsDefault {
		r.setDefault(address.UserID, address.ID)
	}
	return nil
}

func (r *Addresses) Update(_ context.Context, address *models.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.addresses[address.ID]
	if !ok || old.UserID != address.UserID {
		return errors.Wrap(repository.ErrNotFound, "address")
	}
	promote := address.IsDefault
	address.IsDefault = old.IsDefault
	address.CreatedAt = old.CreatedAt
	address.UpdatedAt = time.Now()
	r.addresses[address.ID] = *address
	if promote {
		r.setDefault(address.UserID, address.ID)
		address.IsDefault = true
	}
	return nil
}

func (r *Addresses) SetDefault(_ context.Context, userID, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addresses[id]
	if !ok || a.UserID != userID {
		return errors.Wrap(repository.ErrNotFound, "address")
	}
	r.setDefault(userID, id)
	return nil
}

func (r *Addresses) setDefault(userID, id primitive.ObjectID) {
	for key, a := range r.addresses {
		if a.UserID != userID {
			continue
		}
		a.IsDefault = key == id
		r.addresses[key] = a
	}
}

func (r *Addresses) Delete(_ context.Context, userID, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addresses[id]
	if !ok || a.UserID != userID {
		return errors.Wrap(repository.ErrNotFound, "address")
	}
	delete(r.addresses, id)
	if !a.IsDefault {
		return nil
	}
	if rest := r.byUser(userID); len(rest) > 0 {
		r.setDefault(userID, rest[0].ID)
	}
	return nil
}

type Payments struct {
	mu       sync.Mutex
	payments []models.Payment
}

func NewPayments() *Payments {
	return &Payments{}
}

func (r *Payments) Record(_ context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment.ID = primitive.NewObjectID()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	r.payments = append(r.payments, *payment)
	return nil
}

func (r *Payments) ListByOrder(_ context.Context, orderID primitive.ObjectID) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Payment{}
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}
