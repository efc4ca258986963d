// Build-time tool that downloads the all-MiniLM-L6-v2 sentence-transformer
// model. Without arguments it targets infrastructure/provider/models/ so the
// model can be compiled in via //go:embed (build tag embed_model); pass a
// destination to populate a runtime model directory instead, e.g.
//
//	go run ./tools/download-model ~/.shopvec/models
package main

import (
	"fmt"
	"os"

	"github.com/knights-analytics/hugot"
)

const modelID = "sentence-transformers/all-MiniLM-L6-v2"

func main() {
	dest := "infrastructure/provider/models"
	if len(os.Args) > 1 {
		dest = os.Args[1]
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Downloading %s to %s...\n", modelID, dest)

	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	modelPath, err := hugot.DownloadModel(modelID, dest, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download model: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model downloaded to %s\n", modelPath)
}
