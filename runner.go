package emotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Model is a loaded, pre-trained model that turns an input tensor into
// scores. Implementations own their resources until Close.
type Model interface {
	ModelParameters() ModelParameters

	// Infer runs a forward pass on input and writes the scores into
	// output, one value per label of ModelParameters.
	Infer(input, output Tensor) error

	Close() error
}

// RunnerProcess is a running model process that can classify data.
type RunnerProcess struct {
	modelParams ModelParameters
	project     Project
	opts        RunnerOpts
	tempDir     string             // Temp dir created for this runner if any. Removed on close.
	cancel      context.CancelFunc // For stopping model process.
	conn        net.Conn           // Unix domain socket to model process.
	mutex       sync.Mutex         // Serializing writing requests to model process.
	lastID      int64
}

// ModelParameters returns the parameters for this runner.
func (r *RunnerProcess) ModelParameters() ModelParameters {
	return r.modelParams
}

// Project returns the project for this runner.
func (r *RunnerProcess) Project() Project {
	return r.project
}

// Ensure that RunnerProcess implements interface Model.
var _ Model = (*RunnerProcess)(nil)

// RunnerResponse represents the basic status of a response from the model.
type RunnerResponse struct {
	ID      int64  `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	runnerResponser
}

type runnerResponser interface {
	runnerResponse() RunnerResponse
}

func (r RunnerResponse) runnerResponse() RunnerResponse {
	return r
}

// runnerHelloRequest is a request to the model for its parameters.
type runnerHelloRequest struct {
	ID    int64 `json:"id"`
	Hello int   `json:"hello"` // 1
}

// ModelType describes what a model returns. Only classification models are
// usable for emotion detection.
type ModelType string

// ModelTypeClassification indicates the model returns scoring values for a
// set of labels.
const ModelTypeClassification ModelType = "classification"

// InputShape is the height and width of the spectrogram a model expects.
type InputShape struct {
	Height int
	Width  int
}

// Len returns the number of values in a spectrogram of this shape.
func (s InputShape) Len() int {
	return s.Height * s.Width
}

// ModelParameters holds the model parameters for a model.
type ModelParameters struct {
	ModelType ModelType `json:"model_type"`

	// Sample rate of the audio the model was trained on.
	Frequency float64 `json:"frequency"`

	// Spectrogram dimensions. InputFeaturesCount, if set, must equal
	// InputHeight*InputWidth.
	InputFeaturesCount int `json:"input_features_count"`
	InputHeight        int `json:"input_height"`
	InputWidth         int `json:"input_width"`

	// Labels in resulting classifications.
	Labels     []string `json:"labels"`
	LabelCount int      `json:"label_count"`
}

// InputShape returns the shape of the spectrogram the model expects.
func (p ModelParameters) InputShape() InputShape {
	return InputShape{p.InputHeight, p.InputWidth}
}

// String returns a human-readable summary of the model parameters.
func (p ModelParameters) String() string {
	s := fmt.Sprintf("model type %s, frequency %vHz, spectrogram %dx%d", p.ModelType, p.Frequency, p.InputHeight, p.InputWidth)
	if len(p.Labels) > 0 {
		s += ", classes " + strings.Join(p.Labels, ",")
	}
	return s
}

// Project holds the project information stored in the model.
type Project struct {
	DeployVersion int64  `json:"deploy_version"`
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Owner         string `json:"owner"`
}

// String returns human-readable project info.
func (p Project) String() string {
	return fmt.Sprintf("%s/%s (v%v)", p.Owner, p.Name, p.DeployVersion)
}

// runnerHelloResponse is the response from the model to a runnerHelloRequest.
type runnerHelloResponse struct {
	RunnerResponse
	ModelParameters ModelParameters `json:"model_parameters"`
	Project         Project         `json:"project"`
}

// RunnerClassifyRequest is a request to the model to classify data.
type RunnerClassifyRequest struct {
	ID       int64     `json:"id"`
	Classify []float64 `json:"classify"`
}

// RunnerClassifyResponse is the response from the model to a
// RunnerClassifyRequest.
type RunnerClassifyResponse struct {
	RunnerResponse

	Result struct {
		Classification map[string]float64 `json:"classification,omitempty"`
	} `json:"result"`

	Timing struct {
		DSP            float64 `json:"dsp"`
		Classification float64 `json:"classification"`
	} `json:"timing"`
}

// String returns a summary of the result, with classification or error
// message.
func (r RunnerClassifyResponse) String() string {
	if !r.Success {
		return fmt.Sprintf("error: %v", r.Error)
	}
	ms := fmt.Sprintf("%dms", int64(r.Timing.Classification))
	if r.Result.Classification == nil {
		return "(result without classification)"
	}
	var kv []string
	for k, v := range r.Result.Classification {
		kv = append(kv, fmt.Sprintf("%s=%.4f", k, v))
	}
	sort.Strings(kv)
	return fmt.Sprintf("classification in %s: %s", ms, strings.Join(kv, " "))
}

// RunnerOpts contains options for starting a runner.
type RunnerOpts struct {
	// Explicitly set a working directory. This directory is not
	// automatically removed on Runner.Close. If empty, a temporary
	// directory is created.
	WorkDir string

	// If not empty, the JSON-encoded requests and responses are written to
	// this directory.
	TraceDir string

	// How long to wait for a response from the model. Default 5s.
	Timeout time.Duration

	// Logger for tracing. Defaults to the logrus standard logger.
	Log logrus.FieldLogger
}

// LoadModel starts the model executable at modelPath and reads its
// parameters. Failures wrap ErrModelLoad. Always call Close on the returned
// runner, to stop the process and cleanup temporary directories.
func LoadModel(modelPath string, opts *RunnerOpts) (runner *RunnerProcess, rerr error) {
	r := &RunnerProcess{}
	if opts != nil {
		r.opts = *opts
	}
	if r.opts.Timeout == 0 {
		r.opts.Timeout = 5 * time.Second
	}
	if r.opts.Log == nil {
		r.opts.Log = logrus.StandardLogger()
	}

	// Make sure we cleanup on failure.
	defer func() {
		if rerr != nil {
			r.Close()
			rerr = fmt.Errorf("%w %s: %v", ErrModelLoad, modelPath, rerr)
		}
	}()

	modelPath, err := filepath.Abs(modelPath)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %v", err)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, err
	}

	if r.opts.WorkDir == "" {
		dir, err := TempDir()
		if err != nil {
			return nil, fmt.Errorf("making temp dir: %v", err)
		}
		r.opts.WorkDir = dir
		r.tempDir = dir
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	cmd := exec.CommandContext(ctx, modelPath, "runner.sock")
	cmd.Dir = r.opts.WorkDir
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting model process: %v", err)
	}
	go cmd.Wait()

	sockPath := filepath.Join(r.opts.WorkDir, "runner.sock")
	for i := 0; ; i++ {
		conn, err := net.Dial("unix", sockPath)
		if err == nil {
			r.conn = conn
			break
		}
		if !errors.Is(err, syscall.ENOENT) && !errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("opening runner socket: %v", err)
		}
		if i == 1000 {
			return nil, fmt.Errorf("no socket from runner")
		}
		time.Sleep(1 * time.Millisecond)
	}

	if err := r.hello(); err != nil {
		return nil, err
	}
	return r, nil
}

// hello asks the model for its parameters and checks they describe a usable
// spectrogram classifier.
func (r *RunnerProcess) hello() error {
	helloReq := runnerHelloRequest{ID: r.nextID(), Hello: 1}
	var helloResp runnerHelloResponse
	if err := r.transact(helloReq.ID, helloReq, &helloResp); err != nil {
		return fmt.Errorf("hello to model: %v", err)
	}
	mp := helloResp.ModelParameters
	if string(mp.ModelType) == "" {
		mp.ModelType = ModelTypeClassification
	}
	if mp.ModelType != ModelTypeClassification {
		return fmt.Errorf("model type %q, expected %q", mp.ModelType, ModelTypeClassification)
	}
	if mp.InputHeight <= 0 || mp.InputWidth <= 0 {
		return fmt.Errorf("model has no spectrogram input shape (height %d, width %d)", mp.InputHeight, mp.InputWidth)
	}
	if mp.InputFeaturesCount != 0 && mp.InputFeaturesCount != mp.InputHeight*mp.InputWidth {
		return fmt.Errorf("model input features count %d does not match shape %dx%d", mp.InputFeaturesCount, mp.InputHeight, mp.InputWidth)
	}
	if mp.LabelCount == 0 {
		mp.LabelCount = len(mp.Labels)
	}
	r.modelParams = mp
	r.project = helloResp.Project
	return nil
}

// Do a single request/response transaction.
func (r *RunnerProcess) transact(id int64, req interface{}, resp runnerResponser) error {
	if err := json.NewEncoder(r.conn).Encode(req); err != nil {
		return fmt.Errorf("writing json to model: %v", err)
	}

	r.writeTrace(filepath.Join(r.opts.TraceDir, fmt.Sprintf("runner-%d-request.json", id)), req)

	r.conn.SetReadDeadline(time.Now().Add(r.opts.Timeout))

	dec := json.NewDecoder(r.conn)
	if err := dec.Decode(resp); err != nil {
		return fmt.Errorf("reading json from model: %v", err)
	}

	r.writeTrace(filepath.Join(r.opts.TraceDir, fmt.Sprintf("runner-%d-response.json", id)), resp)

	// Model writes a zero byte after the JSON. It's probably already read, and buffered in the decoder, but not necessarily. So make sure to drain it.
	buf, err := io.ReadAll(dec.Buffered())
	if err == nil && len(buf) == 0 {
		r.conn.Read([]byte{0})
	}

	if !resp.runnerResponse().Success {
		return fmt.Errorf("classifying: %s", resp.runnerResponse().Error)
	}
	return nil
}

func (r *RunnerProcess) writeTrace(filename string, data interface{}) {
	if r.opts.TraceDir == "" {
		return
	}
	log := r.opts.Log.WithField("file", filename)

	f, err := os.Create(filename)
	if err != nil {
		log.WithError(err).Warn("trace, creating file")
		return
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(data); err != nil {
		log.WithError(err).Warn("trace, writing data")
		return
	}
	log.Debug("trace")
}

func (r *RunnerProcess) nextID() int64 {
	r.lastID++
	return r.lastID
}

// Classify executes the model on the features and returns the resulting
// classification.
func (r *RunnerProcess) Classify(data []float64) (resp RunnerClassifyResponse, rerr error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.conn == nil {
		return resp, fmt.Errorf("runner is closed")
	}
	req := RunnerClassifyRequest{
		ID:       r.nextID(),
		Classify: data,
	}
	rerr = r.transact(req.ID, req, &resp)
	return
}

// Infer sends the input tensor to the model process, and writes the score
// of each of the model's labels into output, in the order of
// ModelParameters().Labels. Failures wrap ErrInference.
func (r *RunnerProcess) Infer(input, output Tensor) error {
	labels := r.modelParams.Labels
	if len(output.Data) != len(labels) {
		return fmt.Errorf("%w: output has room for %d scores, model has %d labels", ErrInference, len(output.Data), len(labels))
	}

	data := make([]float64, len(input.Data))
	for i, v := range input.Data {
		data[i] = float64(v)
	}
	resp, err := r.Classify(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInference, err)
	}
	for i, label := range labels {
		v, ok := resp.Result.Classification[label]
		if !ok {
			return fmt.Errorf("%w: no score for label %q in model response", ErrInference, label)
		}
		output.Data[i] = float32(v)
	}
	return nil
}

// Close shuts down the runner, stopping the model process.
func (r *RunnerProcess) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	if r.tempDir != "" {
		os.RemoveAll(r.tempDir)
		r.tempDir = ""
	}
	return nil
}
