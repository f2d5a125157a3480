package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"consumo/internal/core"
	"consumo/internal/storage"
)

// latestLimit is the number of consumption rows shown on the home page.
const latestLimit = 10

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// The root pattern matches everything not claimed by another route.
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	latest, err := s.consumptions.ListLatestConsumptions(r.Context(), latestLimit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Latest consumptions error", "error", err)
		http.Error(w, "failed to load consumption records", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "index.html", struct {
		Consumptions []core.ConsumptionDetail
	}{Consumptions: latest})
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		clients, err := s.clients.ListClients(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Client list error", "error", err)
			http.Error(w, "failed to load clients", http.StatusInternalServerError)
			return
		}
		s.render(w, r, "clients.html", struct {
			Clients []core.Client
		}{Clients: clients})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		name := sanitizeInput(r.Form.Get("client_name"))
		if name != "" {
			// A duplicate name is rejected by the UNIQUE constraint; the
			// redirect happens either way and the listing shows the truth.
			if _, err := s.clients.CreateClient(r.Context(), name); err != nil {
				slog.WarnContext(r.Context(), "Client creation failed", "error", err, "name", name)
			}
		}
		http.Redirect(w, r, "/clients", http.StatusSeeOther)

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	products, err := s.products.ListProducts(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Product list error", "error", err)
		http.Error(w, "failed to load products", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "products.html", struct {
		Products []core.Product
	}{Products: products})
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		services, err := s.services.ListServices(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Service list error", "error", err)
			http.Error(w, "failed to load services", http.StatusInternalServerError)
			return
		}
		s.render(w, r, "services.html", struct {
			Services []core.Service
		}{Services: services})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		name := sanitizeInput(r.Form.Get("service_name"))
		serviceType := sanitizeInput(r.Form.Get("service_type"))
		if name != "" {
			if _, err := s.services.CreateService(r.Context(), name, serviceType); err != nil {
				slog.WarnContext(r.Context(), "Service creation failed", "error", err, "name", name)
			}
		}
		http.Redirect(w, r, "/services", http.StatusSeeOther)

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAssignService(w http.ResponseWriter, r *http.Request) {
	serviceID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		service, err := s.services.GetService(r.Context(), serviceID)
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "Service lookup error", "error", err, "service_id", serviceID)
			http.Error(w, "failed to load service", http.StatusInternalServerError)
			return
		}

		clients, err := s.clients.ListClients(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Client list error", "error", err)
			http.Error(w, "failed to load clients", http.StatusInternalServerError)
			return
		}
		members, err := s.services.ListServiceClients(r.Context(), serviceID)
		if err != nil {
			slog.ErrorContext(r.Context(), "Membership list error", "error", err, "service_id", serviceID)
			http.Error(w, "failed to load membership", http.StatusInternalServerError)
			return
		}

		assigned := make(map[int64]bool, len(members))
		for _, m := range members {
			assigned[m.ID] = true
		}
		type clientOption struct {
			ID       int64
			Name     string
			Assigned bool
		}
		opts := make([]clientOption, 0, len(clients))
		for _, c := range clients {
			opts = append(opts, clientOption{ID: c.ID, Name: c.Name, Assigned: assigned[c.ID]})
		}

		s.render(w, r, "assign_service.html", struct {
			Service core.Service
			Clients []clientOption
		}{Service: service, Clients: opts})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		// The submitted list is the complete new membership. Values that
		// don't parse can never resolve to a client and are skipped like
		// any other unknown id.
		var clientIDs []int64
		for _, raw := range r.Form["client_ids"] {
			id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				continue
			}
			clientIDs = append(clientIDs, id)
		}

		err := s.services.ReplaceServiceClients(r.Context(), serviceID, clientIDs)
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "Membership replace error", "error", err, "service_id", serviceID)
			http.Error(w, "failed to update membership", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/services", http.StatusSeeOther)

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleConsumption(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var (
			clients  []core.Client
			products []core.Product
			services []core.Service
		)
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() (err error) {
			clients, err = s.clients.ListClients(ctx)
			return err
		})
		g.Go(func() (err error) {
			products, err = s.products.ListProducts(ctx)
			return err
		})
		g.Go(func() (err error) {
			services, err = s.services.ListServices(ctx)
			return err
		})
		if err := g.Wait(); err != nil {
			slog.ErrorContext(r.Context(), "Consumption form load error", "error", err)
			http.Error(w, "failed to load form data", http.StatusInternalServerError)
			return
		}

		s.render(w, r, "consumption.html", struct {
			Clients  []core.Client
			Products []core.Product
			Services []core.Service
		}{Clients: clients, Products: products, Services: services})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		consumption, err := parseConsumptionForm(r)
		if err != nil {
			slog.WarnContext(r.Context(), "Consumption form rejected", "error", err)
			http.Error(w, "failed to record consumption", http.StatusInternalServerError)
			return
		}

		if _, err := s.consumptions.CreateConsumption(r.Context(), consumption); err != nil {
			slog.ErrorContext(r.Context(), "Consumption create error", "error", err,
				"client_id", consumption.ClientID, "product_id", consumption.ProductID, "month", consumption.Month)
			http.Error(w, "failed to record consumption", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// parseConsumptionForm coerces the submitted fields into a validated record.
func parseConsumptionForm(r *http.Request) (core.Consumption, error) {
	clientID, err := strconv.ParseInt(strings.TrimSpace(r.Form.Get("client_id")), 10, 64)
	if err != nil {
		return core.Consumption{}, core.ErrInvalidRef
	}
	productID, err := strconv.ParseInt(strings.TrimSpace(r.Form.Get("product_id")), 10, 64)
	if err != nil {
		return core.Consumption{}, core.ErrInvalidRef
	}
	quantity, err := strconv.ParseInt(strings.TrimSpace(r.Form.Get("quantity")), 10, 64)
	if err != nil {
		return core.Consumption{}, err
	}

	c := core.Consumption{
		Month:     strings.TrimSpace(r.Form.Get("month")),
		Quantity:  quantity,
		ClientID:  clientID,
		ProductID: productID,
	}

	// service_id is optional: absent or empty means no service.
	if raw := strings.TrimSpace(r.Form.Get("service_id")); raw != "" {
		serviceID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.Consumption{}, core.ErrInvalidRef
		}
		c.ServiceID = &serviceID
	}

	if err := c.Validate(); err != nil {
		return core.Consumption{}, err
	}
	return c, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// sanitizeInput removes potentially dangerous characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	// Remove control characters except tab, newline, carriage return
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1 // remove character
		}
		return r
	}, s)
	return result
}
