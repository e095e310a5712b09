package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/book-expert/tts-editor/internal/core"
)

// SystemDictName is the dictionary file assembled from the segmented parts.
const SystemDictName = "sys.dic"

const (
	systemDictParts     = 21
	defaultFetchWorkers = 4
)

// ErrBaseURL indicates an asset base URL that cannot be parsed.
var ErrBaseURL = errors.New("invalid asset base URL")

// DictFileNames are the dictionary files fetched as they are.
var DictFileNames = []string{
	"char.bin",
	"left-id.def",
	"matrix.bin",
	"pos-id.def",
	"rewrite.def",
	"right-id.def",
	"unk.dic",
}

// SystemDictPartNames returns sys-1.dic through sys-21.dic in order.
func SystemDictPartNames() []string {
	names := make([]string, 0, systemDictParts)
	for i := 1; i <= systemDictParts; i++ {
		names = append(names, fmt.Sprintf("sys-%d.dic", i))
	}

	return names
}

// AssetPlan locates the engine assets.
type AssetPlan struct {
	DictBaseURL  string
	ModelBaseURL string
	// FetchWorkers bounds concurrent downloads. Zero means a small default.
	FetchWorkers int
}

// Validate checks that both base URLs parse.
func (p AssetPlan) Validate() error {
	for _, base := range []string{p.DictBaseURL, p.ModelBaseURL} {
		_, err := url.Parse(base)
		if err != nil || base == "" {
			return fmt.Errorf("%w: %q", ErrBaseURL, base)
		}
	}

	return nil
}

func resolve(base, name string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBaseURL, err)
	}

	ref, err := url.Parse(name)
	if err != nil {
		return "", fmt.Errorf("failed to parse asset name '%s': %w", name, err)
	}

	return baseURL.ResolveReference(ref).String(), nil
}

// fetchAssets downloads every dictionary file, the system dictionary parts
// and the three models concurrently, then joins the parts into sys.dic.
func (w *NatsWorker) fetchAssets(ctx context.Context) ([]core.AssetFile, core.ModelFiles, error) {
	partNames := SystemDictPartNames()
	modelNames := []string{"duration/model.json", "f0/model.json", "volume/model.json"}

	urls := make([]string, 0, len(DictFileNames)+len(partNames)+len(modelNames))

	for _, name := range append(append([]string{}, DictFileNames...), partNames...) {
		resolved, err := resolve(w.plan.DictBaseURL, name)
		if err != nil {
			return nil, core.ModelFiles{}, err
		}

		urls = append(urls, resolved)
	}

	for _, name := range modelNames {
		resolved, err := resolve(w.plan.ModelBaseURL, name)
		if err != nil {
			return nil, core.ModelFiles{}, err
		}

		urls = append(urls, resolved)
	}

	contents, err := w.fetchParallel(ctx, urls)
	if err != nil {
		return nil, core.ModelFiles{}, err
	}

	dict := make([]core.AssetFile, 0, len(DictFileNames)+1)
	for i, name := range DictFileNames {
		dict = append(dict, core.AssetFile{Name: name, Data: contents[i]})
	}

	parts := contents[len(DictFileNames) : len(DictFileNames)+len(partNames)]
	dict = append(dict, core.AssetFile{Name: SystemDictName, Data: bytes.Join(parts, nil)})

	models := contents[len(DictFileNames)+len(partNames):]

	return dict, core.ModelFiles{Duration: models[0], F0: models[1], Volume: models[2]}, nil
}

// fetchParallel fetches every url with a bounded worker pool. The result
// keeps the order of urls.
func (w *NatsWorker) fetchParallel(ctx context.Context, urls []string) ([][]byte, error) {
	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		lastError error
	)

	workers := w.plan.FetchWorkers
	if workers <= 0 {
		workers = defaultFetchWorkers
	}

	contents := make([][]byte, len(urls))
	workerPool := make(chan struct{}, workers)

	for urlIndex, assetURL := range urls {
		waitGroup.Add(1)

		go func(index int, target string) {
			defer waitGroup.Done()

			workerPool <- struct{}{}

			defer func() { <-workerPool }()

			data, err := w.assets.Fetch(ctx, target)
			if err != nil {
				mutex.Lock()
				lastError = fmt.Errorf("failed to fetch asset %s: %w", target, err)
				mutex.Unlock()

				return
			}

			contents[index] = data
		}(urlIndex, assetURL)
	}

	waitGroup.Wait()
	close(workerPool)

	if lastError != nil {
		return nil, lastError
	}

	w.log.Info("Fetched %d engine assets", len(urls))

	return contents, nil
}
