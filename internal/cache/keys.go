package cache

// Cache keys are namespaced by resource kind and, where applicable, by
// the identity they belong to, so entries never leak across users.

const clientsKey = "oidc_clients"
const apiKeysKey = "user_api_keys"

func ClientsKey() string { return clientsKey }

func ClientDetailsKey(clientID string) string { return "client_details_" + clientID }

func UserGroupsKey(userID string) string { return "user_groups_" + userID }

func CurrentUserKey(userID string) string { return "current_user_" + userID }

func PasskeysKey(userID string) string { return "user_passkeys_" + userID }

func APIKeysKey() string { return apiKeysKey }
