package controllers

import (
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"fashion-store/middleware"
	"fashion-store/models"
	"fashion-store/repository"
	"fashion-store/utils"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxImageSize      = 5 << 20
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Verifier sends the account verification email
type Verifier interface {
	SendVerificationEmail(toEmail, token string) error
}

// UserController handles user-related requests
type UserController struct {
	Users     repository.Users
	Email     Verifier
	UploadDir string
	Log       logrus.FieldLogger
}

func NewUserController(users repository.Users, email Verifier, uploadDir string, log logrus.FieldLogger) *UserController {
	return &UserController{Users: users, Email: email, UploadDir: uploadDir, Log: log}
}

// Register handles user registration
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
	}
	if err := decodeJSON(r, &input); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Name == "" || !strings.Contains(input.Email, "@") {
		utils.WriteError(w, http.StatusBadRequest, "name and a valid email are required")
		return
	}
	if len(input.Password) < minPasswordLength {
		utils.WriteError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, uc.Log, errors.Wrap(err, "hash password"))
		return
	}

	user := models.User{
		Name:              input.Name,
		Email:             input.Email,
		Phone:             input.Phone,
		Password:          string(hashedPassword),
		Role:              models.RoleUser,
		VerificationToken: uuid.NewString(),
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := uc.Users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			utils.WriteError(w, http.StatusConflict, "User already exists")
			return
		}
		respondError(w, uc.Log, err)
		return
	}

	// the account exists either way; a lost email can be fixed by support
	if err := uc.Email.SendVerificationEmail(user.Email, user.VerificationToken); err != nil {
		uc.Log.WithFields(logrus.Fields{"email": user.Email, "err": err}).Error("could not send verification email")
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully. Please check your email to verify your account.",
	})
}

// VerifyEmail handles email verification
func (uc *UserController) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.WriteError(w, http.StatusBadRequest, "Verification token missing")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := uc.Users.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.WriteError(w, http.StatusBadRequest, "User not found or already verified")
			return
		}
		respondError(w, uc.Log, err)
		return
	}
	if err := uc.Users.MarkVerified(ctx, user.ID); err != nil {
		respondError(w, uc.Log, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully. You can now log in."})
}

// Login checks credentials and starts a session. The token is returned in
// the body and set as the session cookie.
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &creds); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := uc.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.WriteError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		respondError(w, uc.Log, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if !user.IsVerified {
		utils.WriteError(w, http.StatusUnauthorized, "Email not verified")
		return
	}

	token, err := utils.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		respondError(w, uc.Log, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(utils.SessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}

// Logout drops the session cookie
func (uc *UserController) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// GetProfile retrieves the authenticated user's profile
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := uc.Users.FindByID(ctx, userID)
	if err != nil {
		respondError(w, uc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

func (uc *UserController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, uc.Log, err)
		return
	}
	if strings.TrimSpace(input.Name) == "" {
		utils.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := uc.Users.UpdateProfile(ctx, userID, strings.TrimSpace(input.Name), strings.TrimSpace(input.Phone)); err != nil {
		respondError(w, uc.Log, err)
		return
	}
	user, err := uc.Users.FindByID(ctx, userID)
	if err != nil {
		respondError(w, uc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

// UploadImage stores a profile picture under the upload directory. The form
// field is "image"; jpeg, png and webp are accepted.
func (uc *UserController) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+1<<10)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Image too large or malformed form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Missing image file")
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	ext, ok := imageExtensions[http.DetectContentType(head[:n])]
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Only jpeg, png and webp images are allowed")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		respondError(w, uc.Log, errors.Wrap(err, "rewind upload"))
		return
	}

	dir := filepath.Join(uc.UploadDir, "users", userID.Hex())
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		respondError(w, uc.Log, errors.Wrap(err, "create upload dir"))
		return
	}
	filename := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		respondError(w, uc.Log, errors.Wrap(err, "create image file"))
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		respondError(w, uc.Log, errors.Wrap(err, "save image"))
		return
	}

	imageURL := path.Join("/uploads", "users", userID.Hex(), filename)
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := uc.Users.UpdateImage(ctx, userID, imageURL); err != nil {
		respondError(w, uc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"image": imageURL})
}

func (uc *UserController) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, uc.Log, err)
		return
	}
	if len(input.NewPassword) < minPasswordLength {
		utils.WriteError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := uc.Users.FindByID(ctx, userID)
	if err != nil {
		respondError(w, uc.Log, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.CurrentPassword)); err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "current password is wrong")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, uc.Log, errors.Wrap(err, "hash password"))
		return
	}
	if err := uc.Users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		respondError(w, uc.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
