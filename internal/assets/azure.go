package assets

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

type azureMirror struct {
	client    *azblob.Client
	container string
	prefix    string
}

func NewAzureBlobMirror(ctx context.Context) (Mirror, error) {
	account := os.Getenv("AZURE_STORAGE_ACCOUNT")
	key := os.Getenv("AZURE_STORAGE_KEY")
	container := os.Getenv("AZURE_BLOB_CONTAINER")
	if account == "" || key == "" || container == "" {
		return nil, fmt.Errorf("AZURE_STORAGE_ACCOUNT/AZURE_STORAGE_KEY/AZURE_BLOB_CONTAINER required for azure mirror")
	}
	prefix := os.Getenv("AZURE_BLOB_PREFIX")
	credential, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("build shared key credential: %w", err)
	}
	url := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClientWithSharedKeyCredential(url, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &azureMirror{
		client:    client,
		container: container,
		prefix:    prefix,
	}, nil
}

func (a *azureMirror) Name() string {
	return "azure"
}

func (a *azureMirror) StoreAsset(ctx context.Context, filename string, data []byte) error {
	_, err := a.client.UploadBuffer(ctx, a.container, a.keyFor(filename), data, nil)
	return err
}

func (a *azureMirror) keyFor(filename string) string {
	if a.prefix == "" {
		return path.Join("assets", filename)
	}
	return path.Join(a.prefix, "assets", filename)
}
