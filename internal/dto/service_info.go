package dto

type ServiceInfo struct {
	Message     string `json:"message"`
	Environment string `json:"environment"`
}
