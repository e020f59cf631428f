package predict

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldguide/fieldguide-go/internal/errors"
)

const testBaseURL = "http://fieldguide.test"

func setupTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(Config{
		BaseURL: testBaseURL,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
}

func TestPredictImageSuccess(t *testing.T) {
	client := setupTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/api/predict",
		httpmock.NewStringResponder(http.StatusOK, `{
			"prediction": {
				"class": "007.Parakeet_Auklet",
				"confidence": 0.95,
				"top_predictions": [
					{"class": "007.Parakeet_Auklet", "confidence": 0.95},
					{"class": "008.Rhinoceros_Auklet", "confidence": 0.03}
				]
			},
			"warning": null
		}`))

	result, err := client.PredictImage(context.Background(), "auklet.jpg", strings.NewReader("fake-image-bytes"))
	require.NoError(t, err)

	require.NotNil(t, result.Prediction)
	assert.Equal(t, "007.Parakeet_Auklet", result.Prediction.Class)
	assert.InDelta(t, 0.95, result.Prediction.Confidence, 0.001)
	assert.Len(t, result.Prediction.TopPredictions, 2)
	assert.Nil(t, result.Warning)
}

func TestPredictImageCarriesWarning(t *testing.T) {
	client := setupTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/api/predict",
		httpmock.NewStringResponder(http.StatusOK, `{
			"prediction": {"class": "007.Parakeet_Auklet", "confidence": 0.31},
			"warning": {"type": "low_confidence", "message": "The model is not confident about this classification"}
		}`))

	result, err := client.PredictImage(context.Background(), "blurry.jpg", strings.NewReader("x"))
	require.NoError(t, err)

	require.NotNil(t, result.Warning)
	assert.Equal(t, "low_confidence", result.Warning.Type)
}

func TestPredictSoundUsesAudioEndpoint(t *testing.T) {
	client := setupTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/api/predict-sound",
		httpmock.NewStringResponder(http.StatusOK, `{"prediction": {"class": "035.Purple_Finch", "confidence": 0.81}}`))

	result, err := client.PredictSound(context.Background(), "song.wav", strings.NewReader("riff"))
	require.NoError(t, err)
	assert.Equal(t, "035.Purple_Finch", result.Prediction.Class)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestServiceErrorBodySurfaced(t *testing.T) {
	client := setupTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/api/predict",
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"error": "model not loaded"}`))

	_, err := client.PredictImage(context.Background(), "a.jpg", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork))
}

func TestTimeoutIsDistinctCategory(t *testing.T) {
	client, err := NewClient(Config{
		BaseURL: testBaseURL,
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/api/predict",
		func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

	_, err = client.PredictImage(context.Background(), "a.jpg", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err), "expected timeout category, got %v", errors.CategoryOf(err))
}

func TestDescribeChat(t *testing.T) {
	client := setupTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/api/description-chat",
		httpmock.NewStringResponder(http.StatusOK, `{
			"success": true,
			"response": "I found 2 possible matches:",
			"matches": [
				{"species_id": "MONARCH", "confidence": 0.7},
				{"species_id": "VICEROY", "confidence": 0.5}
			],
			"follow_up_questions": ["Does it have black wing borders?"]
		}`))

	resp, err := client.DescribeChat(context.Background(), &DescribeRequest{
		Message:  "orange wings with black veins",
		Category: CategoryButterflies,
	})
	require.NoError(t, err)

	assert.Len(t, resp.Matches, 2)
	assert.Equal(t, []string{"Does it have black wing borders?"}, resp.FollowUpQuestions)
}

func TestDescribeChatFailureSurfacesError(t *testing.T) {
	client := setupTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/api/description-chat",
		httpmock.NewStringResponder(http.StatusOK, `{"success": false, "error": "description too vague"}`))

	_, err := client.DescribeChat(context.Background(), &DescribeRequest{Message: "bird"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description too vague")
}

func TestFetchCatalog(t *testing.T) {
	client := setupTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/api/birds",
		httpmock.NewStringResponder(http.StatusOK, `{
			"status": "success",
			"birds": {
				"007.Parakeet_Auklet": {"common_name": "Parakeet Auklet", "scientific_name": "Aethia psittacula"},
				"035.Purple_Finch": {"common_name": "Purple Finch", "scientific_name": "Haemorhous purpureus"}
			}
		}`))

	records, err := client.FetchCatalog(context.Background(), CategoryBirds)
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Equal(t, "Parakeet Auklet", records["007.Parakeet_Auklet"]["common_name"])
}

func TestFetchCatalogNonSuccessStatus(t *testing.T) {
	client := setupTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/api/butterflies",
		httpmock.NewStringResponder(http.StatusOK, `{"status": "error", "error": "catalog unavailable"}`))

	_, err := client.FetchCatalog(context.Background(), CategoryButterflies)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog unavailable")
}

func TestFetchSpeciesImageCaches(t *testing.T) {
	client := setupTestClient(t)

	httpmock.RegisterResponder(http.MethodGet,
		testBaseURL+"/api/species-image?path=data%2Fraw%2FADONIS%2Fa.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte{0xFF, 0xD8, 0xFF}))

	first, err := client.FetchSpeciesImage(context.Background(), "data/raw/ADONIS/a.jpg")
	require.NoError(t, err)
	second, err := client.FetchSpeciesImage(context.Background(), "data/raw/ADONIS/a.jpg")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "second fetch must hit the in-memory cache")
}
