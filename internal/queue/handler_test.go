package queue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/ui-locator/internal/element"
	"github.com/adverant/nexus/ui-locator/internal/errors"
	"github.com/adverant/nexus/ui-locator/internal/locator"
	"github.com/adverant/nexus/ui-locator/internal/screen"
)

type fakeLocator struct {
	results     []element.UIElement
	err         error
	block       bool
	description string
	target      string
	shot        *screen.Screenshot
	opts        locator.LocateOptions
	calls       int
	clears      int
}

func (f *fakeLocator) Locate(ctx context.Context, description string, shot *screen.Screenshot, target string, opts locator.LocateOptions) ([]element.UIElement, error) {
	f.calls++
	f.description = description
	f.target = target
	f.shot = shot
	f.opts = opts
	if f.block {
		<-ctx.Done()
		return []element.UIElement{}, nil
	}
	return f.results, f.err
}

func (f *fakeLocator) ClearCache(_ context.Context) error {
	f.clears++
	return f.err
}

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func boolPtr(b bool) *bool { return &b }

func TestNewLocateTask(t *testing.T) {
	task, err := NewLocateTask(LocatePayload{Description: "Save button", Target: "Save"})
	require.NoError(t, err)
	assert.Equal(t, TypeLocateElement, task.Type())

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, "Save button", decoded["description"])
	assert.NotContains(t, decoded, "use_cache")

	_, err = NewLocateTask(LocatePayload{})
	assert.Error(t, err)

	assert.Equal(t, TypeClearCache, NewClearCacheTask().Type())
}

func TestHandleLocateDecodesImage(t *testing.T) {
	fake := &fakeLocator{results: []element.UIElement{{
		ElementType: element.TypeOCRText,
		Description: "Save",
		BBox:        element.BBox{X1: 10, Y1: 10, X2: 40, Y2: 20},
		Confidence:  0.9,
	}}}
	h := NewHandler(fake, time.Second)

	task, err := NewLocateTask(LocatePayload{
		Description: "Save button",
		Target:      "Save",
		ImageBase64: pngBase64(t, 64, 48),
		UseCache:    boolPtr(false),
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleLocate(context.Background(), task))
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, "Save button", fake.description)
	assert.Equal(t, "Save", fake.target)
	require.NotNil(t, fake.shot)
	assert.Equal(t, element.Size{Width: 64, Height: 48}, fake.shot.Size())
	assert.True(t, fake.opts.SkipCache)
	assert.False(t, fake.opts.SkipOCR)
}

func TestHandleLocateWithoutImageCaptures(t *testing.T) {
	fake := &fakeLocator{}
	h := NewHandler(fake, time.Second)

	monitor := 1
	task, err := NewLocateTask(LocatePayload{Description: "Close", UseOCR: boolPtr(false), Monitor: &monitor})
	require.NoError(t, err)

	require.NoError(t, h.HandleLocate(context.Background(), task))
	assert.Nil(t, fake.shot)
	assert.True(t, fake.opts.SkipOCR)
	require.NotNil(t, fake.opts.Monitor)
	assert.Equal(t, 1, *fake.opts.Monitor)
}

func TestHandleLocateRejectsBadPayloads(t *testing.T) {
	fake := &fakeLocator{}
	h := NewHandler(fake, time.Second)

	cases := map[string][]byte{
		"not json":       []byte("{"),
		"no description": []byte(`{"target":"Save"}`),
		"bad base64":     []byte(`{"description":"x","image_base64":"%%%"}`),
		"not an image":   []byte(`{"description":"x","image_base64":"aGVsbG8="}`),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			err := h.HandleLocate(context.Background(), asynq.NewTask(TypeLocateElement, payload))
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, asynq.SkipRetry))
		})
	}
	assert.Zero(t, fake.calls)
}

func TestHandleLocatePropagatesParseError(t *testing.T) {
	fake := &fakeLocator{err: errors.NewParseError("garbage", stderrors.New("invalid character"))}
	h := NewHandler(fake, time.Second)

	task, err := NewLocateTask(LocatePayload{Description: "Save"})
	require.NoError(t, err)

	err = h.HandleLocate(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))
	assert.False(t, stderrors.Is(err, asynq.SkipRetry))
}

func TestHandleLocateTimeout(t *testing.T) {
	fake := &fakeLocator{block: true}
	h := NewHandler(fake, 20*time.Millisecond)

	task, err := NewLocateTask(LocatePayload{Description: "Save"})
	require.NoError(t, err)

	err = h.HandleLocate(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestMuxRoutesTasks(t *testing.T) {
	fake := &fakeLocator{}
	mux := asynq.NewServeMux()
	NewHandler(fake, time.Second).Register(mux)

	require.NoError(t, mux.ProcessTask(context.Background(), NewClearCacheTask()))
	assert.Equal(t, 1, fake.clears)

	task, err := NewLocateTask(LocatePayload{Description: "Save"})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Equal(t, 1, fake.calls)
}

func TestHandleClearCacheError(t *testing.T) {
	fake := &fakeLocator{err: stderrors.New("redis down")}
	err := NewHandler(fake, 0).HandleClearCache(context.Background(), NewClearCacheTask())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryDelay(0, nil, nil))
	assert.Equal(t, 10*time.Second, retryDelay(1, nil, nil))
	assert.Equal(t, 40*time.Second, retryDelay(3, nil, nil))
	assert.Equal(t, 60*time.Second, retryDelay(4, nil, nil))
	assert.Equal(t, 60*time.Second, retryDelay(30, nil, nil))
}

func TestNewConsumerValidation(t *testing.T) {
	_, err := NewConsumer(&ConsumerConfig{QueueName: "locator", Locator: &fakeLocator{}})
	assert.Error(t, err)

	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", Locator: &fakeLocator{}})
	assert.Error(t, err)

	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", QueueName: "locator"})
	assert.Error(t, err)

	c, err := NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", QueueName: "locator", Locator: &fakeLocator{}})
	require.NoError(t, err)
	assert.Equal(t, 1, c.GetStatistics()["concurrency"])
}
