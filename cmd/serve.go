package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shopdesk/workorder-cli/internal/model"
	"github.com/shopdesk/workorder-cli/internal/pipeline"
	"github.com/shopdesk/workorder-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the work-order intake API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mux := buildMux(env, int64(cfg.Intake.MaxUploadMB)<<20)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown; env.Close drains in-flight runs afterwards.
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// workOrderDetail is the single-order response shape: the record plus its
// resolved customer and vehicle, when references are set.
type workOrderDetail struct {
	model.WorkOrder
	Customer *model.Customer `json:"customer,omitempty"`
	Vehicle  *model.Vehicle  `json:"vehicle,omitempty"`
}

func buildMux(env *pipelineEnv, maxUploadBytes int64) *http.ServeMux {
	mux := http.NewServeMux()
	st := env.Store

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /work-orders", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}

		sub := pipeline.Submission{
			CustomerID:    r.FormValue("customer_id"),
			CustomerName:  r.FormValue("customer_name"),
			CustomerPhone: r.FormValue("customer_phone"),
			CustomerEmail: r.FormValue("customer_email"),
			VehicleID:     r.FormValue("vehicle_id"),
		}

		var err error
		if sub.VINImage, err = readImagePart(r, "vin_image"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if sub.OdometerImage, err = readImagePart(r, "odometer_image"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if sub.PlateImage, err = readImagePart(r, "plate_image"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if sub.Audio, err = readAudioParts(r); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		id, err := env.Coordinator.Submit(r.Context(), sub)
		if err != nil {
			if store.IsNotFound(err) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			zap.L().Error("intake submit failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "intake failed")
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     id,
			"status": string(model.StatusPending),
		})
	})

	mux.HandleFunc("GET /work-orders", func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseOrderFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		orders, err := st.ListWorkOrders(r.Context(), filter)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	})

	mux.HandleFunc("GET /work-orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		wo, err := st.GetWorkOrder(r.Context(), r.PathValue("id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}

		detail := workOrderDetail{WorkOrder: *wo}
		if wo.CustomerID != "" {
			if c, err := st.GetCustomer(r.Context(), wo.CustomerID); err == nil {
				detail.Customer = c
			}
		}
		if wo.VehicleID != "" {
			if v, err := st.GetVehicle(r.Context(), wo.VehicleID); err == nil {
				detail.Vehicle = v
			}
		}
		writeJSON(w, http.StatusOK, detail)
	})

	mux.HandleFunc("PUT /work-orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		var upd model.WorkOrderUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if upd.Status != nil && !upd.Status.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", *upd.Status))
			return
		}

		wo, err := st.UpdateWorkOrder(r.Context(), r.PathValue("id"), upd)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wo)
	})

	mux.HandleFunc("DELETE /work-orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := st.DeleteWorkOrder(r.Context(), r.PathValue("id")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /customers", func(w http.ResponseWriter, r *http.Request) {
		customers, err := st.ListCustomers(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, customers)
	})

	mux.HandleFunc("POST /customers", func(w http.ResponseWriter, r *http.Request) {
		var c model.Customer
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if c.FirstName == "" {
			writeError(w, http.StatusBadRequest, "first_name is required")
			return
		}
		if err := st.CreateCustomer(r.Context(), &c); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	})

	mux.HandleFunc("GET /customers/{id}", func(w http.ResponseWriter, r *http.Request) {
		c, err := st.GetCustomer(r.Context(), r.PathValue("id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	})

	mux.HandleFunc("PUT /customers/{id}", func(w http.ResponseWriter, r *http.Request) {
		var upd model.CustomerUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		c, err := st.UpdateCustomer(r.Context(), r.PathValue("id"), upd)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	})

	mux.HandleFunc("DELETE /customers/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := st.DeleteCustomer(r.Context(), r.PathValue("id")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /customers/{id}/work-orders", func(w http.ResponseWriter, r *http.Request) {
		orders, err := st.ListWorkOrders(r.Context(), store.WorkOrderFilter{CustomerID: r.PathValue("id")})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	})

	mux.HandleFunc("GET /customers/{id}/vehicles", func(w http.ResponseWriter, r *http.Request) {
		vehicles, err := st.ListVehiclesByCustomer(r.Context(), r.PathValue("id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, vehicles)
	})

	mux.HandleFunc("POST /vehicles", func(w http.ResponseWriter, r *http.Request) {
		var v model.Vehicle
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if v.CustomerID == "" {
			writeError(w, http.StatusBadRequest, "customer_id is required")
			return
		}
		if _, err := st.GetCustomer(r.Context(), v.CustomerID); err != nil {
			writeStoreError(w, err)
			return
		}
		if err := st.CreateVehicle(r.Context(), &v); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, v)
	})

	mux.HandleFunc("GET /vehicles/{id}", func(w http.ResponseWriter, r *http.Request) {
		v, err := st.GetVehicle(r.Context(), r.PathValue("id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	})

	mux.HandleFunc("PUT /vehicles/{id}", func(w http.ResponseWriter, r *http.Request) {
		var upd model.VehicleUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		v, err := st.UpdateVehicle(r.Context(), r.PathValue("id"), upd)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	})

	mux.HandleFunc("DELETE /vehicles/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := st.DeleteVehicle(r.Context(), r.PathValue("id")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func parseOrderFilter(r *http.Request) (store.WorkOrderFilter, error) {
	var filter store.WorkOrderFilter

	if s := r.URL.Query().Get("status"); s != "" {
		status := model.WorkOrderStatus(s)
		if !status.Valid() {
			return filter, eris.Errorf("invalid status %q", s)
		}
		filter.Status = status
	}
	filter.CustomerID = r.URL.Query().Get("customer_id")

	for name, dst := range map[string]*int{
		"limit":  &filter.Limit,
		"offset": &filter.Offset,
	} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, eris.Errorf("invalid %s %q", name, raw)
		}
		*dst = n
	}

	return filter, nil
}

// readImagePart reads an optional single-file form field into an Image.
// Absent fields return a zero Image.
func readImagePart(r *http.Request, field string) (pipeline.Image, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return pipeline.Image{}, nil
	}
	if err != nil {
		return pipeline.Image{}, eris.Errorf("read %s", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Image{}, eris.Errorf("read %s", field)
	}
	return pipeline.Image{
		Data:      data,
		MediaType: header.Header.Get("Content-Type"),
	}, nil
}

// readAudioParts reads every file under the repeated "audio" form field.
func readAudioParts(r *http.Request) ([]pipeline.AudioClip, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	var clips []pipeline.AudioClip
	for _, header := range r.MultipartForm.File["audio"] {
		clip, err := readAudioHeader(header)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
	}
	return clips, nil
}

func readAudioHeader(header *multipart.FileHeader) (pipeline.AudioClip, error) {
	file, err := header.Open()
	if err != nil {
		return pipeline.AudioClip{}, eris.Errorf("read audio %s", header.Filename)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.AudioClip{}, eris.Errorf("read audio %s", header.Filename)
	}
	return pipeline.AudioClip{Data: data, Filename: header.Filename}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if store.IsNotFound(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	zap.L().Error("store operation failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
