// Package fakebackend runs an in-process stand-in for the coffee-shop REST backend.
// It implements the subset of the backend contract the UI talks to: the password grant,
// signup, /me, resource CRUD and the manager analytics. Tokens are real HS256 JWTs and
// passwords are bcrypt hashed so the UI exercises the same flows it would in production.
package fakebackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
)

const tokenTTL = time.Hour

type employee struct {
	profile      domainauth.Profile
	passwordHash []byte
}

// collection is one keyed backend table.
type collection struct {
	key          string
	managerWrite bool
	readOnly     bool
	items        map[string]map[string]any
}

// Analytics holds the canned analytics responses.
type Analytics struct {
	Revenue    float64
	Popular    []map[string]any
	TopRevenue []map[string]any
}

// Server is an httptest.Server emulating the backend.
type Server struct {
	*httptest.Server

	// FailMe makes GET /me answer 500.
	FailMe atomic.Bool
	// DropMe makes GET /me close the connection without a response.
	DropMe atomic.Bool
	// RejectToken makes every authenticated endpoint answer 401.
	RejectToken atomic.Bool

	mu          sync.Mutex
	secret      []byte
	employees   map[string]*employee // by email
	collections map[string]*collection
	analytics   Analytics
	requests    []Request
}

// Request is one recorded inbound request.
type Request struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	ContentType   string
}

// New starts a fake backend that is closed when the test finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		secret:    []byte(uuid.NewString()),
		employees: make(map[string]*employee),
		collections: map[string]*collection{
			"employees":          {key: "ssn", managerWrite: true},
			"inventory_items":    {key: "name"},
			"menu_items":         {key: "name", managerWrite: true},
			"work_schedules":     {key: "ssn", readOnly: true},
			"accounting_entries": {key: "timestamp", readOnly: true},
		},
	}
	for _, c := range s.collections {
		c.items = make(map[string]map[string]any)
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", s.handleToken)
	mux.HandleFunc("POST /signup", s.handleSignup)
	mux.HandleFunc("GET /me", s.authed(s.handleMe))

	mux.HandleFunc("GET /analytics/revenue/", s.manager(s.handleRevenue))
	mux.HandleFunc("GET /analytics/popular/", s.manager(s.handlePopular))
	mux.HandleFunc("GET /analytics/top-revenue/", s.manager(s.handleTopRevenue))

	mux.HandleFunc("POST /inventory_items/{key}/refill", s.authed(s.handleRefill))

	for name := range s.collections {
		mux.HandleFunc("GET /"+name+"/", s.authed(s.list(name)))
		mux.HandleFunc("POST /"+name+"/", s.authed(s.create(name)))
		mux.HandleFunc("PATCH /"+name+"/{key}", s.authed(s.update(name)))
		mux.HandleFunc("DELETE /"+name+"/{key}", s.authed(s.remove(name)))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
	})
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests hit method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}

// AddEmployee registers an employee who can log in with password.
func (s *Server) AddEmployee(p domainauth.Profile, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("fakebackend: hash password: %v", err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putEmployeeLocked(&employee{profile: p, passwordHash: hash})
}

func (s *Server) putEmployeeLocked(e *employee) {
	s.employees[strings.ToLower(e.profile.Email)] = e
	s.collections["employees"].items[e.profile.SSN] = map[string]any{
		"ssn":    e.profile.SSN,
		"name":   e.profile.Name,
		"email":  e.profile.Email,
		"salary": e.profile.Salary,
	}
}

// Seed stores a row in a collection, replacing any row with the same key.
func (s *Server) Seed(collectionName string, row map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collectionName]
	if !ok {
		panic("fakebackend: unknown collection " + collectionName)
	}
	c.items[fmt.Sprint(row[c.key])] = cloneRow(row)
}

// Row returns a stored row.
func (s *Server) Row(collectionName, key string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return nil, false
	}
	row, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return cloneRow(row), true
}

// SetAnalytics replaces the canned analytics data.
func (s *Server) SetAnalytics(a Analytics) {
	s.mu.Lock()
	s.analytics = a
	s.mu.Unlock()
}

// Token mints a valid token for email.
func (s *Server) Token(email string) string {
	s.mu.Lock()
	secret := s.secret
	s.mu.Unlock()
	tok, err := mint(secret, email)
	if err != nil {
		panic(fmt.Sprintf("fakebackend: mint token: %v", err))
	}
	return tok
}

// RotateSecret invalidates every token issued so far.
func (s *Server) RotateSecret() {
	s.mu.Lock()
	s.secret = []byte(uuid.NewString())
	s.mu.Unlock()
}

func mint(secret []byte, email string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *Server) verify(raw string) (string, error) {
	s.mu.Lock()
	secret := s.secret
	s.mu.Unlock()

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

type handlerWithUser func(w http.ResponseWriter, r *http.Request, e *employee)

func (s *Server) authed(next handlerWithUser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if s.RejectToken.Load() {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		email, err := s.verify(raw)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		s.mu.Lock()
		e, found := s.employees[strings.ToLower(email)]
		s.mu.Unlock()
		if !found {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next(w, r, e)
	}
}

func (s *Server) manager(next handlerWithUser) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, e *employee) {
		if !e.profile.IsManager() {
			writeDetail(w, http.StatusForbidden, "Managers only")
			return
		}
		next(w, r, e)
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid form")
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeValidation(w, missingFields(map[string]string{"username": username, "password": password})...)
		return
	}

	s.mu.Lock()
	e, ok := s.employees[strings.ToLower(username)]
	secret := s.secret
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(e.passwordHash, []byte(password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	tok, err := mint(secret, e.profile.Email)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": tok, "token_type": "bearer"})
}

type signupPayload struct {
	SSN      string   `json:"ssn"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Salary   *float64 `json:"salary"`
	Password string   `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in signupPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	missing := missingFields(map[string]string{
		"ssn": in.SSN, "name": in.Name, "email": in.Email, "password": in.Password,
	})
	if in.Salary == nil {
		missing = append(missing, "salary")
	}
	if len(missing) > 0 {
		writeValidation(w, missing...)
		return
	}

	s.mu.Lock()
	if _, exists := s.employees[strings.ToLower(in.Email)]; exists {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.MinCost)
	if err != nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusInternalServerError, "hash error")
		return
	}
	e := &employee{
		profile: domainauth.Profile{
			SSN: in.SSN, Name: in.Name, Email: in.Email, Salary: *in.Salary, Role: domainauth.RoleBarista,
		},
		passwordHash: hash,
	}
	s.putEmployeeLocked(e)
	secret := s.secret
	s.mu.Unlock()

	tok, err := mint(secret, e.profile.Email)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"access_token": tok,
		"token_type":   "bearer",
		"user": map[string]any{
			"ssn": e.profile.SSN, "name": e.profile.Name, "email": e.profile.Email, "salary": e.profile.Salary,
		},
	})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, e *employee) {
	if s.DropMe.Load() {
		hj, ok := w.(http.Hijacker)
		if ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return
			}
		}
	}
	if s.FailMe.Load() {
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	s.mu.Lock()
	p := e.profile
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) list(name string) handlerWithUser {
	return func(w http.ResponseWriter, _ *http.Request, _ *employee) {
		s.mu.Lock()
		c := s.collections[name]
		keys := make([]string, 0, len(c.items))
		for k := range c.items {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([]map[string]any, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, cloneRow(c.items[k]))
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, rows)
	}
}

func (s *Server) writable(w http.ResponseWriter, name string, e *employee) (*collection, bool) {
	c := s.collections[name]
	if c.readOnly {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return nil, false
	}
	if c.managerWrite && !e.profile.IsManager() {
		writeDetail(w, http.StatusForbidden, "Managers only")
		return nil, false
	}
	return c, true
}

func (s *Server) create(name string) handlerWithUser {
	return func(w http.ResponseWriter, r *http.Request, e *employee) {
		c, ok := s.writable(w, name, e)
		if !ok {
			return
		}
		row, ok := decodeRow(w, r)
		if !ok {
			return
		}
		key := fmt.Sprint(row[c.key])
		if row[c.key] == nil || key == "" {
			writeValidation(w, c.key)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, exists := c.items[key]; exists {
			writeDetail(w, http.StatusBadRequest, "Item already exists")
			return
		}
		if name == "employees" {
			if err := s.createEmployeeLocked(row); err != nil {
				writeDetail(w, http.StatusBadRequest, err.Error())
				return
			}
		} else {
			c.items[key] = row
		}
		writeJSON(w, http.StatusCreated, cloneRow(c.items[key]))
	}
}

func (s *Server) createEmployeeLocked(row map[string]any) error {
	password, _ := row["password"].(string)
	if password == "" {
		return errors.New("password is required")
	}
	email, _ := row["email"].(string)
	if _, exists := s.employees[strings.ToLower(email)]; exists {
		return errors.New("email already registered")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	salary, _ := row["salary"].(float64)
	name, _ := row["name"].(string)
	s.putEmployeeLocked(&employee{
		profile: domainauth.Profile{
			SSN: fmt.Sprint(row["ssn"]), Name: name, Email: email, Salary: salary, Role: domainauth.RoleBarista,
		},
		passwordHash: hash,
	})
	return nil
}

func (s *Server) update(name string) handlerWithUser {
	return func(w http.ResponseWriter, r *http.Request, e *employee) {
		c, ok := s.writable(w, name, e)
		if !ok {
			return
		}
		patch, ok := decodeRow(w, r)
		if !ok {
			return
		}
		key := r.PathValue("key")

		s.mu.Lock()
		defer s.mu.Unlock()
		row, exists := c.items[key]
		if !exists {
			writeDetail(w, http.StatusNotFound, "Item not found")
			return
		}
		if name == "employees" {
			s.patchEmployeeLocked(key, patch)
		} else {
			for k, v := range patch {
				row[k] = v
			}
			row[c.key] = key
		}
		writeJSON(w, http.StatusOK, cloneRow(c.items[key]))
	}
}

func (s *Server) patchEmployeeLocked(ssn string, patch map[string]any) {
	var target *employee
	for _, emp := range s.employees {
		if emp.profile.SSN == ssn {
			target = emp
			break
		}
	}
	if target == nil {
		return
	}
	delete(s.employees, strings.ToLower(target.profile.Email))
	if v, ok := patch["name"].(string); ok {
		target.profile.Name = v
	}
	if v, ok := patch["email"].(string); ok && v != "" {
		target.profile.Email = v
	}
	if v, ok := patch["salary"].(float64); ok {
		target.profile.Salary = v
	}
	if v, ok := patch["password"].(string); ok && v != "" {
		if hash, err := bcrypt.GenerateFromPassword([]byte(v), bcrypt.MinCost); err == nil {
			target.passwordHash = hash
		}
	}
	s.putEmployeeLocked(target)
}

func (s *Server) remove(name string) handlerWithUser {
	return func(w http.ResponseWriter, r *http.Request, e *employee) {
		c, ok := s.writable(w, name, e)
		if !ok {
			return
		}
		key := r.PathValue("key")

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, exists := c.items[key]; !exists {
			writeDetail(w, http.StatusNotFound, "Item not found")
			return
		}
		delete(c.items, key)
		if name == "employees" {
			for email, emp := range s.employees {
				if emp.profile.SSN == key {
					delete(s.employees, email)
				}
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleRefill(w http.ResponseWriter, r *http.Request, _ *employee) {
	var in struct {
		Quantity *float64 `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Quantity == nil {
		writeValidation(w, "quantity")
		return
	}
	key := r.PathValue("key")

	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.collections["inventory_items"].items[key]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Item not found")
		return
	}
	stock, _ := row["amount_in_stock"].(float64)
	price, _ := row["price_per_unit"].(float64)
	row["amount_in_stock"] = stock + *in.Quantity

	entries := s.collections["accounting_entries"].items
	balance := latestBalance(entries)
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000000")
	entries[ts] = map[string]any{"timestamp": ts, "balance": balance - price*(*in.Quantity)}

	writeJSON(w, http.StatusOK, cloneRow(row))
}

func latestBalance(entries map[string]map[string]any) float64 {
	latest := ""
	for k := range entries {
		if k > latest {
			latest = k
		}
	}
	if latest == "" {
		return 0
	}
	b, _ := entries[latest]["balance"].(float64)
	return b
}

func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request, _ *employee) {
	q := r.URL.Query()
	if missing := missingFields(map[string]string{"start": q.Get("start"), "end": q.Get("end")}); len(missing) > 0 {
		writeValidation(w, missing...)
		return
	}
	s.mu.Lock()
	revenue := s.analytics.Revenue
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"start": q.Get("start"), "end": q.Get("end"), "revenue": revenue})
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request, _ *employee) {
	q := r.URL.Query()
	if missing := missingFields(map[string]string{"month": q.Get("month"), "year": q.Get("year")}); len(missing) > 0 {
		writeValidation(w, missing...)
		return
	}
	s.mu.Lock()
	rows := limitRows(s.analytics.Popular, q.Get("k"))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleTopRevenue(w http.ResponseWriter, r *http.Request, _ *employee) {
	q := r.URL.Query()
	if missing := missingFields(map[string]string{"start": q.Get("start"), "end": q.Get("end")}); len(missing) > 0 {
		writeValidation(w, missing...)
		return
	}
	s.mu.Lock()
	rows := limitRows(s.analytics.TopRevenue, q.Get("k"))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, rows)
}

func limitRows(rows []map[string]any, k string) []map[string]any {
	n := 3
	if k != "" {
		if _, err := fmt.Sscanf(k, "%d", &n); err != nil {
			n = 3
		}
	}
	out := make([]map[string]any, 0, len(rows))
	for i, row := range rows {
		if i >= n {
			break
		}
		out = append(out, cloneRow(row))
	}
	return out
}

func decodeRow(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var row map[string]any
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil || row == nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return nil, false
	}
	return row, true
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if k == "password" {
			continue
		}
		out[k] = v
	}
	return out
}

func missingFields(values map[string]string) []string {
	var missing []string
	for name, v := range values {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

// writeValidation mirrors the FastAPI 422 body shape.
func writeValidation(w http.ResponseWriter, fields ...string) {
	items := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		items = append(items, map[string]any{
			"loc":  []any{"body", f},
			"msg":  "field required",
			"type": "value_error.missing",
		})
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": items})
}
