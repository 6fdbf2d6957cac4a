package taskstub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/taskhooks/pkg/jwt"
)

var (
	errDuplicate = errors.New("username or email already exists")

	validate = validator.New()
)

type contextKey string

const userIDKey contextKey = "userID"

type registerBody struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type taskBody struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Status      string `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, s.logRequests, s.recovery, s.recordRequests)

	r.Post("/register", s.register)
	r.Post("/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.auth)

		r.Post("/logout", s.logout)
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.listTasks)
			r.Post("/", s.createTask)
			r.Get("/{id}", s.getTask)
			r.Put("/{id}", s.updateTask)
			r.Delete("/{id}", s.deleteTask)
		})
	})

	return r
}

// ============================================================================
// Middleware
// ============================================================================

func (s *Server) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status := s.record(r); status != 0 {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// auth validates the bearer token and puts the user id in the request context
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		userID, jti, err := s.verify(parts[1])
		if err != nil {
			switch err {
			case jwt.ErrTokenExpired:
				writeError(w, http.StatusUnauthorized, "token expired")
			case jwt.ErrInvalidSignature:
				writeError(w, http.StatusUnauthorized, "invalid token signature")
			default:
				writeError(w, http.StatusUnauthorized, "invalid token")
			}
			return
		}

		s.mu.Lock()
		revoked := s.revoked[jti]
		_, exists := s.users[userID]
		s.mu.Unlock()
		if revoked || !exists {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, jtiKey, jti)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

const jtiKey contextKey = "jti"

// verify returns the user id and token id carried by token
func (s *Server) verify(token string) (int, string, error) {
	if s.opaque {
		// opaque tokens are "<jti>.<userID>"
		jti, id, ok := strings.Cut(token, ".")
		if !ok {
			return 0, "", jwt.ErrInvalidToken
		}
		s.mu.Lock()
		_, issued := s.revoked[jti]
		s.mu.Unlock()
		n, err := strconv.Atoi(id)
		if err != nil || !issued {
			return 0, "", jwt.ErrInvalidToken
		}
		return n, jti, nil
	}

	claims, err := s.jwt.Validate(token)
	if err != nil {
		return 0, "", err
	}
	n, err := strconv.Atoi(string(claims.UserID))
	if err != nil {
		return 0, "", jwt.ErrInvalidToken
	}
	return n, claims.JWTID, nil
}

func currentUserID(r *http.Request) int {
	id, _ := r.Context().Value(userIDKey).(int)
	return id
}

// ============================================================================
// Account handlers
// ============================================================================

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	u, err := s.addUser(body.Username, body.Email, body.Password)
	if errors.Is(err, errDuplicate) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	u := s.findUserByEmail(body.Email)
	if u == nil || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(body.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.issueToken(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  u,
	})
}

func (s *Server) issueToken(u *userRecord) (string, error) {
	jti := uuid.NewString()
	if s.opaque {
		s.mu.Lock()
		s.revoked[jti] = false
		s.mu.Unlock()
		return jti + "." + strconv.Itoa(u.ID), nil
	}
	id := strconv.Itoa(u.ID)
	return s.jwt.Sign(jwt.Claims{
		Subject:  id,
		JWTID:    jti,
		UserID:   jwt.ID(id),
		Username: u.Username,
		Email:    u.Email,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	jti, _ := r.Context().Value(jtiKey).(string)
	s.mu.Lock()
	s.revoked[jti] = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ============================================================================
// Task handlers
// ============================================================================

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	s.mu.Lock()
	tasks := make([]*taskRecord, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.UserID == userID {
			tasks = append(tasks, t)
		}
	}
	s.mu.Unlock()

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var body taskBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	now := time.Now().UTC()
	t := &taskRecord{
		UserID:      currentUserID(r),
		Title:       body.Title,
		Description: body.Description,
		Status:      defaultString(body.Status, "pending"),
		Priority:    defaultString(body.Priority, "medium"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	t.ID = s.nextTaskID
	s.nextTaskID++
	s.tasks[t.ID] = t
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.ownedTask(w, r); !ok {
		return
	}

	var body taskBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	s.mu.Lock()
	t, ok := s.tasks[taskID(r)]
	if ok {
		t.Title = body.Title
		t.Description = body.Description
		t.Status = defaultString(body.Status, t.Status)
		t.Priority = defaultString(body.Priority, t.Priority)
		t.UpdatedAt = time.Now().UTC()
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTask(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	delete(s.tasks, t.ID)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
}

// ownedTask loads the task named in the URL and writes 404 when it is missing
// or belongs to another user
func (s *Server) ownedTask(w http.ResponseWriter, r *http.Request) (taskRecord, bool) {
	id := taskID(r)

	s.mu.Lock()
	t, ok := s.tasks[id]
	var out taskRecord
	if ok {
		out = *t
	}
	s.mu.Unlock()

	if !ok || out.UserID != currentUserID(r) {
		writeError(w, http.StatusNotFound, "task not found")
		return taskRecord{}, false
	}
	return out, true
}

func taskID(r *http.Request) int {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return -1
	}
	return id
}

// ============================================================================
// Helpers
// ============================================================================

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeError(w, http.StatusBadRequest, strings.ToLower(fe.Field())+" failed "+fe.Tag()+" validation")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
