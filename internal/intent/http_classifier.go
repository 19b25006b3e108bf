package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPClassifier consulta o serviço do modelo treinado via HTTP.
type HTTPClassifier struct {
	httpClient *http.Client
	endpoint   string
}

// NewHTTPClassifier cria o cliente. endpoint recebe POST {"texto": ...}.
func NewHTTPClassifier(endpoint string, timeout time.Duration) (*HTTPClassifier, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("classificador: endpoint obrigatório")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPClassifier{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
	}, nil
}

type classifyRequest struct {
	Texto string `json:"texto"`
}

type classifyResponse struct {
	Intencao  string  `json:"intencao"`
	Confianca float64 `json:"confianca"`
}

// Classify envia o texto e interpreta {"intencao", "confianca"}. Tags desconhecidas viram Desconhecido.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	payload, err := json.Marshal(classifyRequest{Texto: text})
	if err != nil {
		return Prediction{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("classificador: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("classificador: status %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Prediction{}, fmt.Errorf("classificador: decode: %w", err)
	}

	label, ok := ParseLabel(out.Intencao)
	if !ok {
		label = Desconhecido
	}
	return Prediction{Label: label, Confidence: out.Confianca}, nil
}
