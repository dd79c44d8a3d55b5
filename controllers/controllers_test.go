package controllers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip/parenting-hub-go/auth"
	"github.com/phillip/parenting-hub-go/config"
	"github.com/phillip/parenting-hub-go/controllers"
	"github.com/phillip/parenting-hub-go/media"
	"github.com/phillip/parenting-hub-go/models"
	"github.com/phillip/parenting-hub-go/notify"
	"github.com/phillip/parenting-hub-go/routes"
	"github.com/phillip/parenting-hub-go/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSecret  = "test-secret-that-is-long-enough-for-hs256"
	mediaBase   = "http://localhost:8080/media"
	adminEmail  = "admin@example.com"
	foreignOrig = "https://cdn.example.com/places/orig.jpg"
)

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type recorder struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, n.Title)
	}
	return out
}

// slowBucket holds every Put until release is closed.
type slowBucket struct {
	*media.Memory
	release chan struct{}
}

func (b *slowBucket) Put(ctx context.Context, key string, r io.Reader, size int64, meta media.Metadata) (string, error) {
	<-b.release
	return b.Memory.Put(ctx, key, r, size, meta)
}

// delayedBucket answers every Put after delay.
type delayedBucket struct {
	*media.Memory
	delay time.Duration
}

func (b *delayedBucket) Put(ctx context.Context, key string, r io.Reader, size int64, meta media.Metadata) (string, error) {
	time.Sleep(b.delay)
	return b.Memory.Put(ctx, key, r, size, meta)
}

// failingFind breaks every read of the wrapped store.
type failingFind struct {
	*store.Memory
}

func (f failingFind) Find(context.Context, string, store.Query) ([]store.Snapshot, error) {
	return nil, errors.New("dial tcp: connection refused")
}

type harness struct {
	r       *gin.Engine
	backend store.Backend
	memory  *store.Memory
	bucket  *media.Memory
	notes   *recorder
	admin   string
	editor  string
}

type harnessOpts struct {
	bucket         media.Bucket
	noBucket       bool
	uploadTimeout  time.Duration
	requestTimeout time.Duration
	wrap           func(*store.Memory) store.Backend
}

func newHarness(t *testing.T, opts ...func(*harnessOpts)) *harness {
	t.Helper()

	o := harnessOpts{uploadTimeout: 5 * time.Second, requestTimeout: time.Second}
	for _, fn := range opts {
		fn(&o)
	}

	mem := store.NewMemory()
	var backend store.Backend = mem
	if o.wrap != nil {
		backend = o.wrap(mem)
	}

	bucket := media.NewMemory(mediaBase)
	var b media.Bucket = bucket
	switch {
	case o.noBucket:
		b = nil
	case o.bucket != nil:
		b = o.bucket
	}

	notes := &recorder{}
	storeCfg := store.Config{Notifier: notes}
	uploader := func(folder string) *media.Uploader {
		return media.NewUploader(b, folder, media.WithTimeout(o.uploadTimeout), media.WithNotifier(notes))
	}
	events := uploader(media.FolderEvents)
	places := uploader(media.FolderPlaces)
	professionals := uploader(media.FolderProfessionals)
	products := uploader(media.FolderProducts)

	rt := o.requestTimeout
	h := routes.Handlers{
		Events:        controllers.NewResource(store.New[models.Event, *models.Event](backend, storeCfg), events, rt, nil),
		Places:        controllers.NewResource(store.New[models.Place, *models.Place](backend, storeCfg), places, rt, nil),
		Professionals: controllers.NewResource(store.New[models.Professional, *models.Professional](backend, storeCfg), professionals, rt, nil),
		Products:      controllers.NewResource(store.New[models.Product, *models.Product](backend, storeCfg), products, rt, nil),
		ForumPosts:    controllers.NewResource(store.New[models.ForumPost, *models.ForumPost](backend, storeCfg), nil, rt, nil),
		Users:         controllers.NewResource(store.New[models.User, *models.User](backend, storeCfg), nil, rt, nil),
		Uploads:       controllers.NewUploads(events, places, professionals, products),
		MediaBucket:   bucket,
	}

	verifier, err := auth.NewJWTVerifier(testSecret, "parenting-hub")
	require.NoError(t, err)
	admin, err := verifier.Sign(auth.Actor{ID: "uid-admin", Email: adminEmail}, time.Hour)
	require.NoError(t, err)
	editor, err := verifier.Sign(auth.Actor{ID: "uid-editor", Email: "editor@example.com"}, time.Hour)
	require.NoError(t, err)

	cfg := &config.Config{
		Store:    config.StoreConfig{Driver: config.DriverMemory},
		Media:    config.MediaConfig{Driver: config.MediaMemory},
		Firebase: config.FirebaseConfig{ProjectID: "hub-dev", AppID: "1:2:web:3"},
	}

	r := gin.New()
	routes.SetupRoutes(r, cfg, verifier, auth.NewAdminPolicy([]string{adminEmail}), h)

	return &harness{r: r, backend: backend, memory: mem, bucket: bucket, notes: notes, admin: admin, editor: editor}
}

func (h *harness) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.r.ServeHTTP(rec, req)
	return rec
}

func (h *harness) json(method, path, token string, v any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(v)
	return h.do(method, path, token, bytes.NewReader(raw), "application/json")
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

func jpeg(name string, size int) upload {
	data := make([]byte, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return upload{name: name, contentType: "image/jpeg", data: data}
}

// form builds a multipart body with an optional "data" document, optional
// image and extra fields.
func form(t *testing.T, doc any, img *upload, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if doc != nil {
		raw, err := json.Marshal(doc)
		require.NoError(t, err)
		require.NoError(t, mw.WriteField("data", string(raw)))
	}
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	if img != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, img.name))
		hdr.Set("Content-Type", img.contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(img.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type docResponse[T any] struct {
	ID      string `json:"id"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func lactationWorkshop() map[string]any {
	return map[string]any{
		"title":    "Taller de Lactancia",
		"date":     "2026-11-05T10:00:00Z",
		"location": "Centro Cultural",
		"price":    0,
		"isFree":   true,
		"organizer": map[string]any{
			"name":  "Matronas Unidas",
			"email": "info@matronas.example.com",
		},
	}
}

func keyOf(t *testing.T, url string) string {
	t.Helper()
	key, ok := strings.CutPrefix(url, mediaBase+"/")
	require.True(t, ok, "url %q is not a media url", url)
	return key
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreateEvent_WithImage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	img := jpeg("Lactancia.JPG", 2<<20)
	body, ct := form(t, lactationWorkshop(), &img, nil)
	rec := h.do(http.MethodPost, "/api/admin/events", h.admin, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	res := decode[docResponse[models.Event]](t, rec)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, res.ID, res.Data.ID)
	assert.Equal(t, "Taller de Lactancia", res.Data.Title)
	assert.True(t, res.Data.IsFree)
	assert.Zero(t, res.Data.Price)
	assert.Equal(t, "uid-admin", res.Data.CreatedBy)
	assert.False(t, res.Data.CreatedAt.IsZero())

	key := keyOf(t, res.Data.ImageURL)
	assert.Regexp(t, `^events/\d{13}_[0-9a-f]{12}\.jpg$`, key)
	obj, ok := h.bucket.Get(key)
	require.True(t, ok)
	assert.Len(t, obj.Data, 2<<20)
	assert.Equal(t, "Lactancia.JPG", obj.OriginalName)

	served := h.do(http.MethodGet, "/media/"+key, "", nil, "")
	require.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "image/jpeg", served.Header().Get("Content-Type"))
	assert.Equal(t, 2<<20, served.Body.Len())
}

func TestCreateEvent_JSON(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.json(http.MethodPost, "/api/admin/events", h.admin, lactationWorkshop())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	res := decode[docResponse[models.Event]](t, rec)
	assert.Empty(t, res.Data.ImageURL)
	assert.Zero(t, h.bucket.Len())
}

func TestCreate_Rejections(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	paidButFree := lactationWorkshop()
	paidButFree["price"] = 15

	unknown := lactationWorkshop()
	unknown["colour"] = "blue"

	tests := []struct {
		name   string
		token  string
		body   any
		status int
		field  string
	}{
		{name: "anonymous", token: "", body: lactationWorkshop(), status: http.StatusUnauthorized},
		{name: "not an admin", token: h.editor, body: lactationWorkshop(), status: http.StatusForbidden},
		{name: "free event with a price", token: h.admin, body: paidButFree, status: http.StatusBadRequest, field: "price"},
		{name: "missing title", token: h.admin, body: map[string]any{"date": "2026-11-05T10:00:00Z"}, status: http.StatusBadRequest, field: "title"},
		{name: "unknown field", token: h.admin, body: unknown, status: http.StatusBadRequest, field: "colour"},
		{name: "wrong type", token: h.admin, body: map[string]any{"title": "x", "date": "2026-11-05T10:00:00Z", "capacity": "many"}, status: http.StatusBadRequest, field: "capacity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.json(http.MethodPost, "/api/admin/events", tt.token, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.field != "" {
				var res struct {
					Fields []struct {
						Field string `json:"field"`
					} `json:"fields"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
				require.NotEmpty(t, res.Fields)
				assert.Equal(t, tt.field, res.Fields[0].Field)
			}
		})
	}

	items, err := h.memory.Find(context.Background(), models.CollectionEvents, store.Query{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreate_RejectsBadImages(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	tooBig := jpeg("big.jpg", media.MaxFileSize)
	pdf := upload{name: "flyer.pdf", contentType: "application/pdf", data: []byte("%PDF-1.7")}

	for _, img := range []upload{tooBig, pdf} {
		body, ct := form(t, lactationWorkshop(), &img, nil)
		rec := h.do(http.MethodPost, "/api/admin/events", h.admin, body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code, img.name)
	}
	assert.Zero(t, h.bucket.Len())
}

func TestCreate_ImageOnCollectionWithoutImages(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	img := jpeg("a.jpg", 1024)
	body, ct := form(t, map[string]any{"title": "Hola", "content": "Primer post"}, &img, nil)
	rec := h.do(http.MethodPost, "/api/admin/forum-posts", h.admin, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateForumPost_SignedInUser(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.json(http.MethodPost, "/api/forum-posts", h.editor, map[string]any{"title": "Colecho", "content": "Experiencias?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "uid-editor", decode[docResponse[models.ForumPost]](t, rec).Data.CreatedBy)

	// Editing stays admin-only.
	id := decode[docResponse[models.ForumPost]](t, rec).ID
	rec = h.json(http.MethodPatch, "/api/admin/forum-posts/"+id, h.editor, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubmitProduct_BucketImagesMustBeUploadedWithRequest(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	img := jpeg("taller.jpg", 1024)
	body, ct := form(t, lactationWorkshop(), &img, nil)
	rec := h.do(http.MethodPost, "/api/admin/events", h.admin, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	eventImage := decode[docResponse[models.Event]](t, rec).Data.ImageURL

	rec = h.json(http.MethodPost, "/api/products", h.editor, map[string]any{
		"title":  "Cuna de viaje",
		"price":  40,
		"images": []string{eventImage},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "must be uploaded with this request")

	// Links elsewhere and same-request uploads are fine.
	own := jpeg("cuna.jpg", 1024)
	body, ct = form(t, map[string]any{
		"title":  "Cuna de viaje",
		"price":  40,
		"images": []string{"https://cdn.example.com/cuna.jpg", "https://cdn.example.com/cuna-2.jpg"},
	}, &own, nil)
	rec = h.do(http.MethodPost, "/api/products", h.editor, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decode[docResponse[models.Product]](t, rec)
	require.Len(t, product.Data.Images, 2)
	assert.True(t, strings.HasPrefix(keyOf(t, product.Data.Images[0]), "products/"))
	require.Equal(t, 2, h.bucket.Len())

	rec = h.do(http.MethodDelete, "/api/admin/products/"+product.ID, h.admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, kept := h.bucket.Get(keyOf(t, eventImage))
	assert.True(t, kept, "the event image belongs to the event")
	assert.Equal(t, 1, h.bucket.Len())

	// Admins may reference images uploaded through /api/admin/uploads.
	rec = h.json(http.MethodPost, "/api/admin/products", h.admin, map[string]any{
		"title":  "Cuna de viaje",
		"price":  40,
		"images": []string{eventImage},
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// ---------------------------------------------------------------------------
// List / Get
// ---------------------------------------------------------------------------

func TestListAndGet(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	paid := lactationWorkshop()
	paid["title"] = "Masaje Infantil"
	paid["isFree"] = false
	paid["price"] = 20
	for _, ev := range []map[string]any{lactationWorkshop(), paid} {
		require.Equal(t, http.StatusCreated, h.json(http.MethodPost, "/api/admin/events", h.admin, ev).Code)
	}

	rec := h.do(http.MethodGet, "/api/events?orderBy=title", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[docResponse[[]models.Event]](t, rec)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "Masaje Infantil", list.Data[0].Title)
	assert.Empty(t, list.Error)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))

	req := httptest.NewRequest(http.MethodGet, "/api/events?orderBy=title", nil)
	req.Header.Set("If-None-Match", etag)
	cached := httptest.NewRecorder()
	h.r.ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)

	rec = h.do(http.MethodGet, "/api/events?isFree=true", "", nil, "")
	free := decode[docResponse[[]models.Event]](t, rec)
	require.Len(t, free.Data, 1)
	assert.Equal(t, "Taller de Lactancia", free.Data[0].Title)

	rec = h.do(http.MethodGet, "/api/events?orderBy=title&desc=true&limit=1", "", nil, "")
	top := decode[docResponse[[]models.Event]](t, rec)
	require.Len(t, top.Data, 1)
	assert.Equal(t, "Taller de Lactancia", top.Data[0].Title)

	rec = h.do(http.MethodGet, "/api/events/"+free.Data[0].ID, "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Taller de Lactancia", decode[docResponse[models.Event]](t, rec).Data.Title)
	assert.NotEmpty(t, rec.Header().Get("ETag"))
}

func TestList_BadQuery(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, q := range []string{"colour=blue", "orderBy=colour", "limit=0", "limit=abc", "isFree=maybe"} {
		rec := h.do(http.MethodGet, "/api/events?"+q, "", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestList_DegradesOnStoreFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(o *harnessOpts) {
		o.wrap = func(m *store.Memory) store.Backend { return failingFind{m} }
	})

	rec := h.do(http.MethodGet, "/api/places", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[docResponse[[]models.Place]](t, rec)
	assert.Empty(t, res.Data)
	assert.NotEmpty(t, res.Error)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/professionals/nope", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "The requested item does not exist.", decode[docResponse[models.Professional]](t, rec).Error)
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func createPlace(t *testing.T, h *harness, imageURL string) string {
	t.Helper()
	rec := h.json(http.MethodPost, "/api/admin/places", h.admin, map[string]any{
		"name":     "Parque Infantil del Sol",
		"city":     "Valencia",
		"imageUrl": imageURL,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[docResponse[models.Place]](t, rec).ID
}

func TestUpdate_PatchFields(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	id := createPlace(t, h, "")

	rec := h.json(http.MethodPatch, "/api/admin/places/"+id, h.admin, map[string]any{
		"rating":    4.5,
		"createdBy": "someone-else",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[docResponse[models.Place]](t, rec)
	assert.Equal(t, 4.5, res.Data.Rating)
	assert.Equal(t, "uid-admin", res.Data.CreatedBy)
	assert.Equal(t, "uid-admin", res.Data.UpdatedBy)
	assert.Equal(t, "Parque Infantil del Sol", res.Data.Name)

	rec = h.json(http.MethodPatch, "/api/admin/places/"+id, h.admin, map[string]any{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.json(http.MethodPatch, "/api/admin/places/missing", h.admin, map[string]any{"rating": 3})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdate_ReplacesImage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	first := jpeg("first.jpg", 1024)
	body, ct := form(t, map[string]any{"name": "Ludoteca Arcoíris"}, &first, nil)
	rec := h.do(http.MethodPost, "/api/admin/places", h.admin, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[docResponse[models.Place]](t, rec).Data
	oldKey := keyOf(t, created.ImageURL)

	second := jpeg("second.png", 2048)
	second.contentType = "image/png"
	body, ct = form(t, map[string]any{"city": "Madrid"}, &second, nil)
	rec = h.do(http.MethodPatch, "/api/admin/places/"+created.ID, h.admin, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[docResponse[models.Place]](t, rec).Data
	assert.Equal(t, "Madrid", updated.City)
	newKey := keyOf(t, updated.ImageURL)
	assert.True(t, strings.HasPrefix(newKey, "places/"))
	assert.True(t, strings.HasSuffix(newKey, ".png"))
	assert.NotEqual(t, oldKey, newKey)

	_, oldStill := h.bucket.Get(oldKey)
	assert.False(t, oldStill, "previous image must be removed")
	assert.Equal(t, 1, h.bucket.Len())
}

func TestUpdate_ReplaceTimeoutKeepsOriginal(t *testing.T) {
	t.Parallel()

	slow := &slowBucket{Memory: media.NewMemory(mediaBase), release: make(chan struct{})}
	t.Cleanup(func() { close(slow.release) })
	h := newHarness(t, func(o *harnessOpts) {
		o.bucket = slow
		o.uploadTimeout = 30 * time.Millisecond
	})
	id := createPlace(t, h, foreignOrig)

	img := jpeg("new.jpg", 4096)
	body, ct := form(t, nil, &img, nil)
	start := time.Now()
	rec := h.do(http.MethodPatch, "/api/admin/places/"+id, h.admin, body, ct)

	require.Equal(t, http.StatusGatewayTimeout, rec.Code, rec.Body.String())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "The upload timed out. Check your connection and try again.", decode[docResponse[models.Place]](t, rec).Error)
	assert.Contains(t, h.notes.titles(), "Upload failed")

	rec = h.do(http.MethodGet, "/api/places/"+id, "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, foreignOrig, decode[docResponse[models.Place]](t, rec).Data.ImageURL)
}

func TestUpdate_UploadSlowerThanRequestTimeout(t *testing.T) {
	t.Parallel()

	slow := &delayedBucket{Memory: media.NewMemory(mediaBase), delay: 150 * time.Millisecond}
	h := newHarness(t, func(o *harnessOpts) {
		o.bucket = slow
		o.requestTimeout = 50 * time.Millisecond
	})
	id := createPlace(t, h, "")

	img := jpeg("slow.jpg", 2048)
	body, ct := form(t, map[string]any{"city": "Sevilla"}, &img, nil)
	rec := h.do(http.MethodPatch, "/api/admin/places/"+id, h.admin, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[docResponse[models.Place]](t, rec).Data
	assert.Equal(t, "Sevilla", updated.City)
	_, stored := slow.Get(keyOf(t, updated.ImageURL))
	assert.True(t, stored, "uploaded image must be kept")
	assert.Equal(t, 1, slow.Len())

	body, ct = form(t, map[string]any{"name": "Ludoteca Sol"}, &img, nil)
	rec = h.do(http.MethodPost, "/api/admin/places", h.admin, body, ct)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestUpdate_ProductImageReplacesFirst(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.json(http.MethodPost, "/api/admin/products", h.admin, map[string]any{
		"title":  "Carrito de bebé",
		"price":  120,
		"images": []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[docResponse[models.Product]](t, rec).ID

	img := jpeg("carrito.jpg", 1024)
	body, ct := form(t, nil, &img, nil)
	rec = h.do(http.MethodPatch, "/api/admin/products/"+id, h.admin, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	images := decode[docResponse[models.Product]](t, rec).Data.Images
	require.Len(t, images, 2)
	assert.True(t, strings.HasPrefix(keyOf(t, images[0]), "products/"))
	assert.Equal(t, "https://cdn.example.com/b.jpg", images[1])
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestDelete_RemovesImage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	img := jpeg("a.jpg", 1024)
	body, ct := form(t, lactationWorkshop(), &img, nil)
	rec := h.do(http.MethodPost, "/api/admin/events", h.admin, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[docResponse[models.Event]](t, rec).ID
	require.Equal(t, 1, h.bucket.Len())

	rec = h.do(http.MethodDelete, "/api/admin/events/"+id, h.admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, h.bucket.Len())

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/events/"+id, "", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/admin/events/"+id, h.admin, nil, "").Code)
}

// ---------------------------------------------------------------------------
// Uploads
// ---------------------------------------------------------------------------

func TestUploads_ReplaceFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	img := jpeg("a.jpg", 1024)
	body, ct := form(t, nil, &img, nil)
	rec := h.do(http.MethodPost, "/api/admin/uploads/professionals", h.admin, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var first struct {
		URL      string   `json:"url"`
		Previous string   `json:"previous"`
		Stages   []string `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Empty(t, first.Previous)
	assert.Equal(t, []string{"validating", "checking-availability", "uploading", "uploaded", "idle"}, first.Stages)

	body, ct = form(t, nil, &img, map[string]string{"previous": first.URL})
	rec = h.do(http.MethodPost, "/api/admin/uploads/professionals", h.admin, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	second := first
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.URL, second.Previous)
	assert.NotEqual(t, first.URL, second.URL)
	assert.Equal(t, []string{"validating", "checking-availability", "uploading", "uploaded", "deleting-previous", "idle"}, second.Stages)
	assert.Equal(t, 1, h.bucket.Len())

	rec = h.do(http.MethodDelete, "/api/admin/uploads?url="+second.URL, h.admin, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, h.bucket.Len())
}

func TestUploads_Rejections(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	img := jpeg("a.jpg", 1024)
	body, ct := form(t, nil, &img, nil)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/admin/uploads/avatars", h.admin, body, ct).Code)

	body, ct = form(t, nil, nil, map[string]string{"previous": "x"})
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/admin/uploads/events", h.admin, body, ct).Code)

	txt := upload{name: "notes.txt", contentType: "text/plain", data: []byte("hello")}
	body, ct = form(t, nil, &txt, nil)
	rec := h.do(http.MethodPost, "/api/admin/uploads/events", h.admin, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "must be an image")

	body, ct = form(t, nil, &img, nil)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/api/admin/uploads/events", h.editor, body, ct).Code)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodDelete, "/api/admin/uploads", h.admin, nil, "").Code)
	// Foreign URLs are ignored.
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/admin/uploads?url="+foreignOrig, h.admin, nil, "").Code)
}

func TestUploads_Availability(t *testing.T) {
	t.Parallel()

	rec := newHarness(t).do(http.MethodGet, "/api/admin/uploads/availability", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	h := newHarness(t)
	rec = h.do(http.MethodGet, "/api/admin/uploads/availability", h.admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, media.Availability{Available: true}, decode[media.Availability](t, rec))

	off := newHarness(t, func(o *harnessOpts) { o.noBucket = true })
	rec = off.do(http.MethodGet, "/api/admin/uploads/availability", off.admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, media.Availability{Available: false, Error: "store not configured"}, decode[media.Availability](t, rec))

	img := jpeg("a.jpg", 1024)
	body, ct := form(t, nil, &img, nil)
	rec = off.do(http.MethodPost, "/api/admin/uploads/events", off.admin, body, ct)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ---------------------------------------------------------------------------
// System
// ---------------------------------------------------------------------------

func TestSystemEndpoints(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","store":"memory","media":"memory"}`, rec.Body.String())

	rec = h.do(http.MethodGet, "/api/config/firebase", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fb struct {
		Config  map[string]string `json:"config"`
		Missing []string          `json:"missing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fb))
	assert.Equal(t, "hub-dev", fb.Config["projectId"])
	assert.Contains(t, fb.Missing, "FIREBASE_API_KEY")
	assert.NotContains(t, fb.Config, "CredentialsFile")

	rec = h.do(http.MethodGet, "/api/me", h.admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isAdmin":true`)

	rec = h.do(http.MethodGet, "/api/me", h.editor, nil, "")
	assert.Contains(t, rec.Body.String(), `"isAdmin":false`)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/me", "", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/media/events/missing.jpg", "", nil, "").Code)
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

func TestStream_PushesSnapshots(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	srv := httptest.NewServer(h.r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	lines.Buffer(make([]byte, 64<<10), 1<<20)
	next := func() []models.Event {
		t.Helper()
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data:"); ok {
				var ev struct {
					Data []models.Event `json:"data"`
				}
				if json.Unmarshal([]byte(data), &ev) == nil && ev.Data != nil {
					return ev.Data
				}
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return nil
	}

	assert.Empty(t, next())

	rec := h.json(http.MethodPost, "/api/admin/events", h.admin, lactationWorkshop())
	require.Equal(t, http.StatusCreated, rec.Code)

	got := next()
	require.Len(t, got, 1)
	assert.Equal(t, "Taller de Lactancia", got[0].Title)
}
