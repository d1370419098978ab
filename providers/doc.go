// Package providers groups the external collaborators of the top-up service:
// the digiflazz provisioning provider, the paygate payment gateway and the
// devkit scripted transport used to test them.
package providers
