package http

import (
	"encoding/base64"
	"io"
	"mime/multipart"

	"github.com/rhuss/analyst/pkg/conversation"
)

// EncodedUpload is the outcome of encoding one uploaded file: either an
// attachment or the error that prevented reading it.
type EncodedUpload struct {
	Attachment conversation.Attachment
	Err        error
}

// openUpload is replaced in tests to simulate read failures.
var openUpload = func(fh *multipart.FileHeader) (io.ReadCloser, error) {
	return fh.Open()
}

// encodeUploads reads every file and base64-encodes its content. All files
// are attempted; failures are recorded per file.
func encodeUploads(files []*multipart.FileHeader) []EncodedUpload {
	out := make([]EncodedUpload, 0, len(files))
	for _, fh := range files {
		out = append(out, encodeUpload(fh))
	}
	return out
}

func encodeUpload(fh *multipart.FileHeader) EncodedUpload {
	att := conversation.Attachment{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}

	f, err := openUpload(fh)
	if err != nil {
		return EncodedUpload{Attachment: att, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return EncodedUpload{Attachment: att, Err: err}
	}
	att.Content = base64.StdEncoding.EncodeToString(data)
	return EncodedUpload{Attachment: att}
}

// UploadError reports a file that could not be read.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return "Error encoding file " + e.Filename + ": " + e.Err.Error()
}

func (e *UploadError) Unwrap() error { return e.Err }

// attachments returns the encoded attachments, or an error naming the
// first file that failed.
func attachments(uploads []EncodedUpload) ([]conversation.Attachment, error) {
	out := make([]conversation.Attachment, 0, len(uploads))
	for _, u := range uploads {
		if u.Err != nil {
			return nil, &UploadError{Filename: u.Attachment.Filename, Err: u.Err}
		}
		out = append(out, u.Attachment)
	}
	return out, nil
}
