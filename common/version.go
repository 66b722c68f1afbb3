package common

// Version is set at build time via -ldflags.
var Version = "dev"

// ClientID identifies this client implementation to the provisioning API.
// It is sent on every request in the client-identifier header.
const ClientID = "cvmcloud-deploy-client"
