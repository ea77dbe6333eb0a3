// Package env handles environment variables and variable resolution for hitmatch.
//
// It provides functionality for:
//   - Loading dotenv files (.env, .env.<name>, .env.local)
//   - Variable interpolation using {{variable}} syntax
//   - Built-in function evaluation (uuid, timestamp, random, etc.)
//   - Capturing and resolving values from previous cases
//   - Environment-specific variable loading from the config file
package env
