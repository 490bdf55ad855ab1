package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Yousefhamdy22/ProjectGradution/detections"
	"github.com/Yousefhamdy22/ProjectGradution/inference"
	"github.com/Yousefhamdy22/ProjectGradution/models"
)

// Form fields that may carry the upload, in order of preference
var uploadFields = []string{"UploadedFile", "file", "image"}

const multipartMemory = 32 << 20

type poolMetricsSource interface {
	Metrics() inference.PoolMetrics
}

type AppState struct {
	Log       logs.Log
	Pipeline  *detections.Pipeline
	Pool      poolMetricsSource // nil when running without a real model
	Debug     bool
	RateLimit int // requests per minute per client IP, 0 disables
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (s *AppState) logTimings(t *models.ProcessingTimings) {
	if s.Debug {
		s.Log.Debugf("RequestID: %s - Processing times:\n"+
			"\tImage Decode: %v\n"+
			"\tResize:       %v\n"+
			"\tPreprocess:   %v\n"+
			"\tInference:    %v\n"+
			"\tPostprocess:  %v\n"+
			"\tLabeling:     %v\n"+
			"\tTotal:        %v",
			t.RequestID,
			t.ImageDecode,
			t.Resize,
			t.Preprocess,
			t.Inference,
			t.Postprocess,
			t.Labeling,
			t.Total)
	}
}

// Router builds the HTTP handler for the service, CORS and panic recovery included.
func (s *AppState) Router() http.Handler {
	r := mux.NewRouter()

	var detect http.Handler = http.HandlerFunc(s.handleDetect)
	if s.RateLimit > 0 {
		detect = httprate.LimitByIP(s.RateLimit, time.Minute)(detect)
	}
	r.Handle("/api/detection/detect", detect).Methods("POST")
	r.Handle("/detect", detect).Methods("POST")

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.Log}))
	return recovery(cors(r))
}

func (s *AppState) handleDetect(w http.ResponseWriter, r *http.Request) {
	startTotal := time.Now()
	timings := &models.ProcessingTimings{RequestID: uuid.NewString()}

	imgBytes, err := readUpload(r)
	if err != nil || len(imgBytes) == 0 {
		details := ""
		if err != nil {
			details = err.Error()
		}
		sendErrorResponse(w, "invalid_request", MsgInvalidImage, details, http.StatusBadRequest)
		return
	}

	found, err := s.Pipeline.Detect(r.Context(), imgBytes, timings)
	if err != nil {
		stage, _ := detections.FailedStage(err)
		s.Log.Warnf("RequestID %v: detection failed at %v: %v", timings.RequestID, stage, err)
		switch {
		case errors.Is(err, detections.ErrDecode):
			sendErrorResponse(w, "invalid_image", MsgUnsupportedImage, err.Error(), http.StatusBadRequest)
		case errors.Is(err, inference.ErrPoolTimeout):
			sendErrorResponse(w, "session_error", MsgBusy, err.Error(), http.StatusServiceUnavailable)
		default:
			sendErrorResponse(w, "processing_error", MsgDetectionFailed, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	timings.Total = time.Since(startTotal)
	s.logTimings(timings)

	www.SendJSON(w, found)
}

func (s *AppState) handleHealth(w http.ResponseWriter, _ *http.Request) {
	www.SendJSON(w, map[string]string{"status": "ok"})
}

func (s *AppState) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	response := map[string]interface{}{
		"stages":       s.Pipeline.Stats(),
		"labels":       s.Pipeline.Labels().Len(),
		"cpu_features": inference.CPUFeatures(),
	}
	if s.Pool != nil {
		response["pool"] = s.Pool.Metrics()
	}
	www.SendJSON(w, response)
}

// readUpload extracts the image bytes from a multipart form, a JSON body with a
// base64 "image" field, or a raw request body.
func readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return readMultipart(r)
	case "application/json":
		return readJSON(r)
	default:
		if r.Body == nil {
			return nil, nil
		}
		return io.ReadAll(r.Body)
	}
}

func readMultipart(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	var header *multipart.FileHeader
	for _, field := range uploadFields {
		if files := r.MultipartForm.File[field]; len(files) > 0 {
			header = files[0]
			break
		}
	}
	if header == nil {
		// Fall back to the first file under any field name
		for _, files := range r.MultipartForm.File {
			if len(files) > 0 {
				header = files[0]
				break
			}
		}
	}
	if header == nil {
		return nil, fmt.Errorf("no file uploaded")
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func readJSON(r *http.Request) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(req.Image)
}

func sendErrorResponse(w http.ResponseWriter, code, message, details string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

type recoveryLogger struct {
	log logs.Log
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Errorf("Recovered from panic: %v", fmt.Sprint(v...))
}
