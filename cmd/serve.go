package cmd

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jsphweid/pianoscribe/audio"
	"github.com/jsphweid/pianoscribe/config"
	"github.com/jsphweid/pianoscribe/infer"
	"github.com/jsphweid/pianoscribe/job"
	"github.com/jsphweid/pianoscribe/model"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the transcription job API",
	Long:  `Serves the transcription job API`,
	Run: func(cmd *cobra.Command, args []string) {
		serve()
	},
}

// Server is the thin HTTP wrapper around the job manager. Upload handling
// and media acquisition stay outside; submission takes a local path and the
// decoder collaborator does the rest.
type Server struct {
	manager *job.Manager
	decoder audio.Decoder
	log     *logrus.Logger
}

func NewServer(manager *job.Manager, decoder audio.Decoder, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{manager: manager, decoder: decoder, log: log}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/jobs", s.HandleSubmit).Methods("POST")
	router.HandleFunc("/jobs/{id}", s.HandleStatus).Methods("GET")
	router.HandleFunc("/jobs/{id}/midi", s.HandleMIDI).Methods("GET")
	return router
}

func (s *Server) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var input model.SubmitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Path == "" {
		writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty path")
		return
	}

	waveform, err := s.decoder.Decode(r.Context(), input.Path)
	if err != nil {
		s.log.WithError(err).Warn("decode failed")
		writeError(w, http.StatusBadRequest, "could not decode audio input")
		return
	}

	id, err := s.manager.Submit(waveform)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.manager.Start(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.WithField("job", id).Info("job submitted")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(model.SubmitResponse{ID: id})
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.manager.Status(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	json.NewEncoder(w).Encode(status)
}

func (s *Server) HandleMIDI(w http.ResponseWriter, r *http.Request) {
	data, err := s.manager.Result(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusConflict, err.Error())
		}
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Write(data)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(model.ErrorResponse{Error: detail})
}

func serve() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}

	manager := job.NewManager(cfg, infer.NewFluxModel(), log)
	manager.StartSweeper()
	defer manager.Close()

	server := NewServer(manager, audio.NewFFmpeg(cfg), log)
	handler := cors.Default().Handler(server.Router())

	log.WithField("addr", cfg.Server.Addr).Info("listening")
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, handler))
}
