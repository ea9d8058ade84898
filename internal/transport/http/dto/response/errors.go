package response

var (
	ErrInvalidRequestFormat = ErrorResponse{
		Status:  "error",
		Error:   "invalid_request",
		Details: "Invalid request format",
	}

	ErrImagePathRequired = ErrorResponse{
		Status:  "error",
		Error:   "invalid_request",
		Details: "Image path is required",
	}

	ErrInvalidPath = ErrorResponse{
		Status:  "error",
		Error:   "invalid_path",
		Details: "Invalid path",
	}

	ErrImageNotFound = ErrorResponse{
		Status: "error",
		Error:  "image_not_found",
	}

	ErrStoreUnavailable = ErrorResponse{
		Status:  "error",
		Error:   "store_unavailable",
		Details: "Failed to list images",
	}

	ErrBackendUnavailable = ErrorResponse{
		Status:  "error",
		Error:   "backend_unavailable",
		Details: "Image generation backend is not reachable",
	}

	ErrUnknownArtifact = ErrorResponse{
		Status: "error",
		Error:  "unknown_artifact",
	}

	ErrSelectionNotFound = ErrorResponse{
		Status:  "error",
		Error:   "selection_not_found",
		Details: "No selection has been published yet",
	}

	ErrInternal = ErrorResponse{
		Status:  "error",
		Error:   "internal_error",
		Details: "Internal server error",
	}

	ErrEventsUnavailable = ErrorResponse{
		Status:  "error",
		Error:   "events_unavailable",
		Details: "Event stream is shutting down",
	}
)
