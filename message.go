package main

const (
	MsgInvalidImage = "Invalid image data"

	MsgUnsupportedImage = "The uploaded file could not be decoded as an image. Supported formats are JPEG, PNG, GIF, BMP, TIFF and WebP."

	MsgBusy = "All inference sessions are busy. Please retry the request shortly."

	MsgDetectionFailed = "Detection failed"
)
