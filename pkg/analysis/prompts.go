package analysis

const securityPrompt = `Analyze this MCP server code for security issues. Focus on:

1. Command injection vulnerabilities
2. Unsafe file operations
3. Insecure dependencies
4. Network security risks
5. Resource abuse potential (CPU, memory, disk)
6. Input validation
7. Authentication and authorization
8. Secrets handling

Format each issue as:
- Severity: (high/medium/low)
- Description: (detailed explanation)
- Location: (file and line number)
- Recommendation: (how to fix)

Code to analyze:
%s
`

const guidelinesPrompt = `Analyze this MCP server implementation for compliance with community guidelines:

Key Guidelines:
1. Error Handling
   - Proper error messages
   - Error status codes
   - Error propagation

2. Rate Limiting
   - Request rate limits
   - Resource usage limits
   - Concurrent connection limits

3. Response Format
   - Standard MCP response structure
   - Proper content types
   - Valid JSON schemas

4. Resource Management
   - Memory management
   - File handle cleanup
   - Connection pooling
   - Timeout handling

5. Documentation
   - API documentation
   - Usage examples
   - Error documentation

For each violation, provide:
- Rule: (guideline rule violated)
- Description: (detailed explanation)
- Impact: (effect on server operation)

Server implementation:
%s
`

const descriptionPrompt = `Compare this MCP server implementation with its provided description.

Analyze:
1. Feature completeness - Are all described features implemented?
2. Architectural alignment - Does the implementation follow the described architecture?
3. Interface compliance - Do the APIs match the description?
4. Functionality accuracy - Does the implementation behave as described?

Server Description:
%s

Implementation:
%s

Provide:
1. Implementation summary
2. Feature comparison
3. Discrepancies found
4. Match percentage (0-100)
`
