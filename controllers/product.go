package controllers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fashion-store/models"
	"fashion-store/repository"
	"fashion-store/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ProductController handles product-related requests
type ProductController struct {
	Products repository.Products
	Log      logrus.FieldLogger

	// identical listing queries in flight share one database round trip
	listings singleflight.Group
}

func NewProductController(products repository.Products, log logrus.FieldLogger) *ProductController {
	return &ProductController{Products: products, Log: log}
}

type productPage struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

func filterFrom(q url.Values) models.ProductFilter {
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return models.ProductFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Query:    strings.TrimSpace(q.Get("q")),
		Page:     page,
		Limit:    limit,
	}
}

func (pc *ProductController) list(w http.ResponseWriter, r *http.Request, filter models.ProductFilter) {
	key := strings.Join([]string{filter.Category, filter.Query, strconv.Itoa(filter.Page), strconv.Itoa(filter.Limit)}, "\x00")
	v, err, _ := pc.listings.Do(key, func() (interface{}, error) {
		// other callers may be waiting on this result
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), requestTimeout)
		defer cancel()
		products, total, err := pc.Products.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		if products == nil {
			products = []models.Product{}
		}
		return productPage{Products: products, Total: total, Page: max(filter.Page, 1), Limit: filter.Limit}, nil
	})
	if err != nil {
		respondError(w, pc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, v)
}

// GetProducts lists the catalog; category, q, page and limit narrow it down
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	pc.list(w, r, filterFrom(r.URL.Query()))
}

func (pc *ProductController) Search(w http.ResponseWriter, r *http.Request) {
	filter := filterFrom(r.URL.Query())
	if filter.Query == "" {
		utils.WriteError(w, http.StatusBadRequest, "search query is required")
		return
	}
	pc.list(w, r, filter)
}

// GetProductByID retrieves a single product by ID
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	product, err := pc.Products.FindByID(ctx, id)
	if err != nil {
		respondError(w, pc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, product)
}

func validProduct(p models.Product) string {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return "name is required"
	case p.Price <= 0:
		return "price must be positive"
	case p.Stock < 0:
		return "stock cannot be negative"
	}
	return ""
}

// CreateProduct handles adding a new product (Admin only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := decodeJSON(r, &product); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if msg := validProduct(product); msg != "" {
		utils.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := pc.Products.Create(ctx, &product); err != nil {
		respondError(w, pc.Log, err)
		return
	}
	pc.Log.WithFields(logrus.Fields{"product_id": product.ID.Hex(), "name": product.Name}).Info("product created")
	utils.WriteJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles updating a product (Admin only)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var product models.Product
	if err := decodeJSON(r, &product); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if msg := validProduct(product); msg != "" {
		utils.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	product.ID = id

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := pc.Products.Update(ctx, &product); err != nil {
		respondError(w, pc.Log, err)
		return
	}
	updated, err := pc.Products.FindByID(ctx, id)
	if err != nil {
		respondError(w, pc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

// DeleteProduct handles deleting a product (Admin only)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := pc.Products.Delete(ctx, id); err != nil {
		respondError(w, pc.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
