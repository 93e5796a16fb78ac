package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/hpcq/hpcq/internal/client"
	"github.com/hpcq/hpcq/internal/queue"
)

// Server is the HTTP surface of the dispatch system. Each operation endpoint
// is a pure adapter: decode and validate the body, call the submission
// protocol, return its string untouched. The blocking happens here, inside
// the request, exactly as it does for the callers the protocol was built
// for.
type Server struct {
	client   *client.Client
	broker   queue.Broker
	hub      *Hub
	upgrader websocket.Upgrader
}

func New(c *client.Client, broker queue.Broker) *Server {
	return &Server{
		client: c,
		broker: broker,
		hub:    NewHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/v1/ops/build", s.buildOp).Methods(http.MethodPost)
	router.HandleFunc("/v1/ops/run", s.runOp).Methods(http.MethodPost)
	router.HandleFunc("/v1/ops/script", s.scriptOp).Methods(http.MethodPost)
	router.HandleFunc("/v1/ops/model", s.modelOp).Methods(http.MethodPost)
	router.HandleFunc("/v1/ops/queue", s.queueOp).Methods(http.MethodGet)
	router.HandleFunc("/v1/ops/gpus", s.gpusOp).Methods(http.MethodGet)

	router.HandleFunc("/v1/results/{id}", s.getResult).Methods(http.MethodGet)
	router.HandleFunc("/v1/depth", s.queueDepth).Methods(http.MethodGet)
	router.HandleFunc("/v1/events", s.events).Methods(http.MethodGet)

	return router
}

type buildRequest struct {
	RepoURL           string `json:"repo_url"`
	DockerfileContent string `json:"dockerfile_content"`
	Tag               string `json:"tag"`
}

func (s *Server) buildOp(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.RepoURL == "" || req.DockerfileContent == "" || req.Tag == "" {
		writeErrorMessage(w, http.StatusBadRequest, "repo_url, dockerfile_content and tag are required")
		return
	}
	s.respond(w, "podman_build", func() string {
		return s.client.BuildAndTestImage(r.Context(), req.RepoURL, req.DockerfileContent, req.Tag)
	})
}

type runRequest struct {
	ImageTag string `json:"image_tag"`
	Command  string `json:"command"`
	GPUs     *int   `json:"gpus"`
}

func (s *Server) runOp(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ImageTag == "" || req.Command == "" {
		writeErrorMessage(w, http.StatusBadRequest, "image_tag and command are required")
		return
	}
	gpus := 1
	if req.GPUs != nil {
		gpus = *req.GPUs
	}
	s.respond(w, "podman_run", func() string {
		return s.client.RunBenchmarkInContainer(r.Context(), req.ImageTag, req.Command, gpus)
	})
}

type scriptRequest struct {
	Script    string `json:"script"`
	Partition string `json:"partition"`
	CPUs      int    `json:"cpus"`
	Mem       string `json:"mem"`
	GPUs      *int   `json:"gpus"`
}

func (s *Server) scriptOp(w http.ResponseWriter, r *http.Request) {
	var req scriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Script == "" {
		writeErrorMessage(w, http.StatusBadRequest, "script is required")
		return
	}
	if req.Partition == "" {
		req.Partition = "dev"
	}
	if req.CPUs == 0 {
		req.CPUs = 8
	}
	if req.Mem == "" {
		req.Mem = "64G"
	}
	gpus := 1
	if req.GPUs != nil {
		gpus = *req.GPUs
	}
	s.respond(w, "srun_script", func() string {
		return s.client.RunScriptOnCluster(r.Context(), req.Script, req.Partition, req.CPUs, req.Mem, gpus)
	})
}

type modelRequest struct {
	ModelID string `json:"model_id"`
}

func (s *Server) modelOp(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ModelID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "model_id is required")
		return
	}
	s.respond(w, "huggingface_check", func() string {
		return s.client.CheckModelMetadata(r.Context(), req.ModelID)
	})
}

func (s *Server) queueOp(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "slurm_queue", func() string {
		return s.client.CheckClusterQueue(r.Context())
	})
}

func (s *Server) gpusOp(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "gpu_info", func() string {
		return s.client.GPUInventory(r.Context())
	})
}

// respond runs one blocking operation, bracketed by submitted/finished
// events on the hub.
func (s *Server) respond(w http.ResponseWriter, jobType string, op func() string) {
	s.hub.Broadcast("submitted", jobType)
	output := op()
	s.hub.Broadcast("finished", jobType)
	writeContentType(w)
	data, err := json.Marshal(map[string]string{"output": output})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Write(data)
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	writeContentType(w)
	id := mux.Vars(r)["id"]
	data, err := s.broker.GetResult(r.Context(), id)
	if err != nil {
		glog.Error(err)
		writeErrorMessage(w, http.StatusNotFound, "no result for job "+id)
		return
	}
	w.Write(data)
}

func (s *Server) queueDepth(w http.ResponseWriter, r *http.Request) {
	writeContentType(w)
	n, err := s.broker.QueueLen(r.Context())
	if err != nil {
		glog.Error(err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]int64{"pending": n})
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Error(err)
		return
	}
	s.hub.AddClient(conn)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeErrorMessage(w, status, err.Error())
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeContentType(w)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
}
