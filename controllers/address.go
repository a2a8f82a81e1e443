package controllers

import (
	"net/http"

	"fashion-store/models"
	"fashion-store/repository"
	"fashion-store/utils"

	"github.com/sirupsen/logrus"
)

// AddressController manages a user's saved shipping addresses
type AddressController struct {
	Addresses repository.Addresses
	// Country is the only country the store ships to
	Country string
	Log     logrus.FieldLogger
}

func NewAddressController(addresses repository.Addresses, country string, log logrus.FieldLogger) *AddressController {
	return &AddressController{Addresses: addresses, Country: country, Log: log}
}

type addressInput struct {
	models.ShippingInfo
	IsDefault bool `json:"is_default"`
}

func (ac *AddressController) decode(w http.ResponseWriter, r *http.Request) (addressInput, bool) {
	var input addressInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, ac.Log, err)
		return input, false
	}
	input.Country = ac.Country
	if !input.Complete() {
		utils.WriteError(w, http.StatusBadRequest, "name, phone, address, city, province and postal code are required")
		return input, false
	}
	return input, true
}

func (in addressInput) address() models.Address {
	return models.Address{
		Name:       in.Name,
		Phone:      in.Phone,
		Address:    in.Address,
		City:       in.City,
		Province:   in.Province,
		PostalCode: in.PostalCode,
		Country:    in.Country,
		IsDefault:  in.IsDefault,
	}
}

func (ac *AddressController) List(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	addresses, err := ac.Addresses.ListByUser(ctx, userID)
	if err != nil {
		respondError(w, ac.Log, err)
		return
	}
	if addresses == nil {
		addresses = []models.Address{}
	}
	utils.WriteJSON(w, http.StatusOK, addresses)
}

func (ac *AddressController) Get(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	address, err := ac.Addresses.FindByID(ctx, userID, id)
	if err != nil {
		respondError(w, ac.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, address)
}

// Create saves an address. The first address of a user becomes the default.
func (ac *AddressController) Create(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	input, ok := ac.decode(w, r)
	if !ok {
		return
	}
	address := input.address()
	address.UserID = userID

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := ac.Addresses.Create(ctx, &address); err != nil {
		respondError(w, ac.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, address)
}

func (ac *AddressController) Update(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	input, ok := ac.decode(w, r)
	if !ok {
		return
	}
	address := input.address()
	address.ID, address.UserID = id, userID

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := ac.Addresses.Update(ctx, &address); err != nil {
		respondError(w, ac.Log, err)
		return
	}
	updated, err := ac.Addresses.FindByID(ctx, userID, id)
	if err != nil {
		respondError(w, ac.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

func (ac *AddressController) SetDefault(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := ac.Addresses.SetDefault(ctx, userID, id); err != nil {
		respondError(w, ac.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ac *AddressController) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := ac.Addresses.Delete(ctx, userID, id); err != nil {
		respondError(w, ac.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
